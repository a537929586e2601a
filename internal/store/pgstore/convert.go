package pgstore

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/database"
)

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// fromNumeric treats NULL and NaN as zero.
func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func toDate(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func fromDate(d pgtype.Date) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	y, m, day := d.Time.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func toInt8(p *int64) pgtype.Int8 {
	if p == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: *p, Valid: true}
}

func fromInt8(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func fromTimestamptz(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time.UTC()
}

func claimFromRow(r database.ClaimWithDetail) core.Claim {
	c := core.Claim{
		ID:            r.ID,
		PatientName:   r.PatientName,
		BilledAmount:  fromNumeric(r.BilledAmount),
		PaidAmount:    fromNumeric(r.PaidAmount),
		Status:        r.Status,
		InsurerName:   r.InsurerName,
		DischargeDate: fromDate(r.DischargeDate),
		Flagged:       r.Flagged,
	}
	if r.DetailClaimID.Valid {
		c.Detail = &core.ClaimDetail{
			ClaimID:      r.DetailClaimID.Int64,
			DenialReason: r.DenialReason.String,
			CPTCodes:     r.CptCodes.String,
		}
	}
	return c
}

func noteFromRow(r database.NoteWithAuthor) core.Note {
	return core.Note{
		ID:         r.ID,
		ClaimID:    r.ClaimID,
		AuthorID:   fromInt8(r.AuthorID),
		AuthorName: r.AuthorName.String,
		Text:       r.Text,
		CreatedAt:  fromTimestamptz(r.CreatedAt),
	}
}

func userFromRow(r database.User) core.User {
	return core.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		IsAdmin:      r.IsAdmin,
		CreatedAt:    fromTimestamptz(r.CreatedAt),
	}
}
