package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/database"
)

const uniqueViolation = "23505"

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	row, err := s.q.CreateUser(ctx, database.CreateUserParams{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return core.User{}, fmt.Errorf("create user %q: %w", u.Username, core.ErrUsernameTaken)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user %q: %w", u.Username, err)
	}
	return userFromRow(row), nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (core.User, error) {
	row, err := s.q.GetUser(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, err
	}
	return userFromRow(row), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row, err := s.q.GetUserByUsername(ctx, username)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, err
	}
	return userFromRow(row), nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	q := s.q.WithTx(tx)
	if err := q.DetachUserNotes(ctx, id); err != nil {
		return fmt.Errorf("detach notes of user %d: %w", id, err)
	}
	n, err := q.DeleteUser(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	return tx.Commit(ctx)
}
