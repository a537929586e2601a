package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/database"
)

// repo implements core.ClaimRepository over the pool or a transaction.
type repo struct {
	q *database.Queries
}

func filterArgs(f core.ClaimFilter) (pattern, status string) {
	if f.Search != "" {
		pattern = core.LikePattern(f.Search)
	}
	return pattern, f.Status
}

func (r *repo) GetClaim(ctx context.Context, id int64) (core.Claim, error) {
	row, err := r.q.GetClaim(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Claim{}, core.ClaimNotFound(id)
	}
	if err != nil {
		return core.Claim{}, fmt.Errorf("get claim %d: %w", id, err)
	}
	return claimFromRow(row), nil
}

func (r *repo) ListClaims(ctx context.Context, f core.ClaimFilter, limit, offset int) ([]core.Claim, error) {
	pattern, status := filterArgs(f)
	rows, err := r.q.ListClaims(ctx, database.ListClaimsParams{
		Pattern: pattern,
		Status:  status,
		Limit:   int32(limit),
		Offset:  int32(offset),
	})
	if err != nil {
		return nil, err
	}

	claims := make([]core.Claim, len(rows))
	for i, row := range rows {
		claims[i] = claimFromRow(row)
	}
	return claims, nil
}

func (r *repo) CountClaims(ctx context.Context, f core.ClaimFilter) (int64, error) {
	pattern, status := filterArgs(f)
	return r.q.CountClaims(ctx, pattern, status)
}

func (r *repo) UpsertClaim(ctx context.Context, c core.Claim) (bool, error) {
	return r.q.UpsertClaim(ctx, database.UpsertClaimParams{
		ID:            c.ID,
		PatientName:   c.PatientName,
		BilledAmount:  toNumeric(c.BilledAmount),
		PaidAmount:    toNumeric(c.PaidAmount),
		Status:        c.Status,
		InsurerName:   c.InsurerName,
		DischargeDate: toDate(c.DischargeDate),
	})
}

func (r *repo) UpsertClaimDetail(ctx context.Context, d core.ClaimDetail) (bool, error) {
	return r.q.UpsertClaimDetail(ctx, database.ClaimDetail{
		ClaimID:      d.ClaimID,
		DenialReason: d.DenialReason,
		CptCodes:     d.CPTCodes,
	})
}

func (r *repo) DeleteAllClaims(ctx context.Context) (core.WipeCounts, error) {
	var (
		counts core.WipeCounts
		err    error
	)
	if counts.Notes, err = r.q.DeleteAllNotes(ctx); err != nil {
		return counts, fmt.Errorf("delete notes: %w", err)
	}
	if counts.Details, err = r.q.DeleteAllClaimDetails(ctx); err != nil {
		return counts, fmt.Errorf("delete claim details: %w", err)
	}
	if counts.Claims, err = r.q.DeleteAllClaims(ctx); err != nil {
		return counts, fmt.Errorf("delete claims: %w", err)
	}
	return counts, nil
}

func (r *repo) ToggleFlag(ctx context.Context, id int64) (core.Claim, error) {
	n, err := r.q.ToggleClaimFlag(ctx, id)
	if err != nil {
		return core.Claim{}, fmt.Errorf("toggle flag on claim %d: %w", id, err)
	}
	if n == 0 {
		return core.Claim{}, core.ClaimNotFound(id)
	}
	return r.GetClaim(ctx, id)
}

func (r *repo) AddNote(ctx context.Context, n core.Note) (core.Note, error) {
	row, err := r.q.CreateNote(ctx, database.CreateNoteParams{
		ClaimID:  n.ClaimID,
		AuthorID: toInt8(n.AuthorID),
		Text:     n.Text,
	})
	if err != nil {
		return core.Note{}, err
	}
	n.ID = row.ID
	n.CreatedAt = fromTimestamptz(row.CreatedAt)
	return n, nil
}

func (r *repo) ListNotes(ctx context.Context, claimID int64) ([]core.Note, error) {
	rows, err := r.q.ListNotesByClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	notes := make([]core.Note, len(rows))
	for i, row := range rows {
		notes[i] = noteFromRow(row)
	}
	return notes, nil
}

func (r *repo) Stats(ctx context.Context) (core.DashboardStats, error) {
	row, err := r.q.ClaimStats(ctx)
	if err != nil {
		return core.DashboardStats{}, err
	}
	return core.DashboardStats{
		TotalClaims:     row.Total,
		FlaggedClaims:   row.Flagged,
		AvgUnderpayment: fromNumeric(row.AvgUnderpayment).Round(2),
	}, nil
}

// LockImports takes a transaction-scoped advisory lock. Outside a
// transaction the lock is released as soon as the statement finishes.
func (r *repo) LockImports(ctx context.Context) error {
	return r.q.LockImports(ctx, importLockKey)
}
