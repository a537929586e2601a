package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JonMunkholm/claimdesk/internal/core"
)

var claimUpdateColumns = []string{
	"patient_name", "billed_amount", "paid_amount", "status", "insurer_name", "discharge_date",
}

// repo implements core.ClaimRepository and core.UserRepository over either
// the root connection or a transaction.
type repo struct {
	db      *gorm.DB
	dialect string
}

// filtered applies a claim filter. Search matches id, patient and insurer
// case-insensitively; LIKE wildcards in the term are escaped.
func (r *repo) filtered(ctx context.Context, f core.ClaimFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&claimRow{})
	if f.Search != "" {
		idText, escape := "TEXT", ` ESCAPE '\'`
		if r.dialect == DialectMySQL {
			idText, escape = "CHAR", "" // backslash is already MySQL's LIKE escape
		}
		cond := fmt.Sprintf("(CAST(id AS %[1]s) LIKE ?%[2]s OR LOWER(patient_name) LIKE ?%[2]s OR LOWER(insurer_name) LIKE ?%[2]s)",
			idText, escape)
		p := core.LikePattern(f.Search)
		q = q.Where(cond, p, p, p)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func (r *repo) GetClaim(ctx context.Context, id int64) (core.Claim, error) {
	var row claimRow
	err := r.db.WithContext(ctx).Preload("Detail").Take(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Claim{}, core.ClaimNotFound(id)
	}
	if err != nil {
		return core.Claim{}, fmt.Errorf("get claim %d: %w", id, err)
	}
	return row.toCore(), nil
}

func (r *repo) ListClaims(ctx context.Context, f core.ClaimFilter, limit, offset int) ([]core.Claim, error) {
	var rows []claimRow
	err := r.filtered(ctx, f).
		Preload("Detail").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	claims := make([]core.Claim, len(rows))
	for i, row := range rows {
		claims[i] = row.toCore()
	}
	return claims, nil
}

func (r *repo) CountClaims(ctx context.Context, f core.ClaimFilter) (int64, error) {
	var n int64
	err := r.filtered(ctx, f).Count(&n).Error
	return n, err
}

func (r *repo) exists(ctx context.Context, model any, column string, id int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(model).Where(column+" = ?", id).Limit(1).Count(&n).Error
	return n > 0, err
}

func (r *repo) UpsertClaim(ctx context.Context, c core.Claim) (bool, error) {
	existed, err := r.exists(ctx, &claimRow{}, "id", c.ID)
	if err != nil {
		return false, err
	}

	row := toClaimRow(c)
	row.Flagged = false
	err = r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(claimUpdateColumns),
		}).
		Create(&row).Error
	if err != nil {
		return false, err
	}
	return !existed, nil
}

func (r *repo) UpsertClaimDetail(ctx context.Context, d core.ClaimDetail) (bool, error) {
	existed, err := r.exists(ctx, &detailRow{}, "claim_id", d.ClaimID)
	if err != nil {
		return false, err
	}

	row := detailRow{ClaimID: d.ClaimID, DenialReason: d.DenialReason, CPTCodes: d.CPTCodes}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "claim_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"denial_reason", "cpt_codes"}),
		}).
		Create(&row).Error
	if err != nil {
		return false, err
	}
	return !existed, nil
}

func (r *repo) DeleteAllClaims(ctx context.Context) (core.WipeCounts, error) {
	var counts core.WipeCounts
	db := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})

	res := db.Delete(&noteRow{})
	if res.Error != nil {
		return counts, fmt.Errorf("delete notes: %w", res.Error)
	}
	counts.Notes = res.RowsAffected

	res = db.Delete(&detailRow{})
	if res.Error != nil {
		return counts, fmt.Errorf("delete claim details: %w", res.Error)
	}
	counts.Details = res.RowsAffected

	res = db.Delete(&claimRow{})
	if res.Error != nil {
		return counts, fmt.Errorf("delete claims: %w", res.Error)
	}
	counts.Claims = res.RowsAffected

	return counts, nil
}

func (r *repo) ToggleFlag(ctx context.Context, id int64) (core.Claim, error) {
	var row claimRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&claimRow{}).Where("id = ?", id).Update("flagged", gorm.Expr("NOT flagged"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ClaimNotFound(id)
		}
		return tx.Preload("Detail").Take(&row, "id = ?", id).Error
	})
	if err != nil {
		return core.Claim{}, err
	}
	return row.toCore(), nil
}

func (r *repo) AddNote(ctx context.Context, n core.Note) (core.Note, error) {
	row := noteRow{
		ClaimID:   n.ClaimID,
		AuthorID:  n.AuthorID,
		Text:      n.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return core.Note{}, err
	}
	n.ID = row.ID
	n.CreatedAt = row.CreatedAt
	return n, nil
}

func (r *repo) ListNotes(ctx context.Context, claimID int64) ([]core.Note, error) {
	var rows []noteView
	err := r.db.WithContext(ctx).
		Table("notes").
		Select("notes.id, notes.claim_id, notes.author_id, users.username AS author_name, notes.text, notes.created_at").
		Joins("LEFT JOIN users ON users.id = notes.author_id").
		Where("notes.claim_id = ?", claimID).
		Order("notes.created_at ASC, notes.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	notes := make([]core.Note, len(rows))
	for i, row := range rows {
		notes[i] = row.toCore()
	}
	return notes, nil
}

func (r *repo) Stats(ctx context.Context) (core.DashboardStats, error) {
	var row statsRow
	err := r.db.WithContext(ctx).
		Model(&claimRow{}).
		Select("COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN flagged THEN 1 ELSE 0 END), 0) AS flagged, " +
			"AVG(billed_amount - paid_amount) AS avg_under").
		Scan(&row).Error
	if err != nil {
		return core.DashboardStats{}, err
	}

	avg := decimal.Zero
	if row.AvgUnder.Valid {
		avg = row.AvgUnder.Decimal.Round(2)
	}
	return core.DashboardStats{
		TotalClaims:     row.Total,
		FlaggedClaims:   row.Flagged,
		AvgUnderpayment: avg,
	}, nil
}

// LockImports updates the import lock row, which holds a write lock on it
// until the transaction ends.
func (r *repo) LockImports(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&importLockRow{}).Where("id = ?", 1).Update("locked_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.Create(&importLockRow{ID: 1, LockedAt: time.Now().UTC()}).Error
	}
	return nil
}
