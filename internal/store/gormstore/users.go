package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/JonMunkholm/claimdesk/internal/core"
)

func (r *repo) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	row := userRow{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return core.User{}, fmt.Errorf("create user %q: %w", u.Username, core.ErrUsernameTaken)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user %q: %w", u.Username, err)
	}
	return row.toCore(), nil
}

func (r *repo) GetUser(ctx context.Context, id int64) (core.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Take(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, err
	}
	return row.toCore(), nil
}

func (r *repo) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Take(&row, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, err
	}
	return row.toCore(), nil
}

func (r *repo) DeleteUser(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&noteRow{}).Where("author_id = ?", id).Update("author_id", nil).Error; err != nil {
			return fmt.Errorf("detach notes of user %d: %w", id, err)
		}
		res := tx.Delete(&userRow{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
}
