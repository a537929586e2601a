package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const claimWithDetailColumns = `
    c.id, c.patient_name, c.billed_amount, c.paid_amount, c.status,
    c.insurer_name, c.discharge_date, c.flagged,
    d.claim_id, d.denial_reason, d.cpt_codes`

// $1 is a lower-cased LIKE pattern or '', $2 an exact status or ''.
const claimFilter = `
WHERE ($1::text = '' OR CAST(c.id AS TEXT) LIKE $1 ESCAPE '\'
       OR LOWER(c.patient_name) LIKE $1 ESCAPE '\'
       OR LOWER(c.insurer_name) LIKE $1 ESCAPE '\')
  AND ($2::text = '' OR c.status = $2)`

func scanClaimWithDetail(row interface{ Scan(...any) error }) (ClaimWithDetail, error) {
	var i ClaimWithDetail
	err := row.Scan(
		&i.ID,
		&i.PatientName,
		&i.BilledAmount,
		&i.PaidAmount,
		&i.Status,
		&i.InsurerName,
		&i.DischargeDate,
		&i.Flagged,
		&i.DetailClaimID,
		&i.DenialReason,
		&i.CptCodes,
	)
	return i, err
}

const getClaim = `-- name: GetClaim :one
SELECT` + claimWithDetailColumns + `
FROM claims c
LEFT JOIN claim_details d ON d.claim_id = c.id
WHERE c.id = $1
`

func (q *Queries) GetClaim(ctx context.Context, id int64) (ClaimWithDetail, error) {
	return scanClaimWithDetail(q.db.QueryRow(ctx, getClaim, id))
}

const listClaims = `-- name: ListClaims :many
SELECT` + claimWithDetailColumns + `
FROM claims c
LEFT JOIN claim_details d ON d.claim_id = c.id` + claimFilter + `
ORDER BY c.id DESC
LIMIT $3 OFFSET $4
`

type ListClaimsParams struct {
	Pattern string
	Status  string
	Limit   int32
	Offset  int32
}

func (q *Queries) ListClaims(ctx context.Context, arg ListClaimsParams) ([]ClaimWithDetail, error) {
	rows, err := q.db.Query(ctx, listClaims, arg.Pattern, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ClaimWithDetail
	for rows.Next() {
		i, err := scanClaimWithDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countClaims = `-- name: CountClaims :one
SELECT COUNT(*) FROM claims c` + claimFilter + `
`

func (q *Queries) CountClaims(ctx context.Context, pattern, status string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countClaims, pattern, status).Scan(&count)
	return count, err
}

const upsertClaim = `-- name: UpsertClaim :one
INSERT INTO claims (id, patient_name, billed_amount, paid_amount, status, insurer_name, discharge_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    patient_name   = EXCLUDED.patient_name,
    billed_amount  = EXCLUDED.billed_amount,
    paid_amount    = EXCLUDED.paid_amount,
    status         = EXCLUDED.status,
    insurer_name   = EXCLUDED.insurer_name,
    discharge_date = EXCLUDED.discharge_date
RETURNING (xmax = 0) AS inserted
`

type UpsertClaimParams struct {
	ID            int64
	PatientName   string
	BilledAmount  pgtype.Numeric
	PaidAmount    pgtype.Numeric
	Status        string
	InsurerName   string
	DischargeDate pgtype.Date
}

// UpsertClaim reports whether the row was inserted rather than updated.
func (q *Queries) UpsertClaim(ctx context.Context, arg UpsertClaimParams) (bool, error) {
	row := q.db.QueryRow(ctx, upsertClaim,
		arg.ID,
		arg.PatientName,
		arg.BilledAmount,
		arg.PaidAmount,
		arg.Status,
		arg.InsurerName,
		arg.DischargeDate,
	)
	var inserted bool
	err := row.Scan(&inserted)
	return inserted, err
}

const upsertClaimDetail = `-- name: UpsertClaimDetail :one
INSERT INTO claim_details (claim_id, denial_reason, cpt_codes)
VALUES ($1, $2, $3)
ON CONFLICT (claim_id) DO UPDATE SET
    denial_reason = EXCLUDED.denial_reason,
    cpt_codes     = EXCLUDED.cpt_codes
RETURNING (xmax = 0) AS inserted
`

func (q *Queries) UpsertClaimDetail(ctx context.Context, arg ClaimDetail) (bool, error) {
	var inserted bool
	err := q.db.QueryRow(ctx, upsertClaimDetail, arg.ClaimID, arg.DenialReason, arg.CptCodes).Scan(&inserted)
	return inserted, err
}

const deleteAllNotes = `-- name: DeleteAllNotes :execrows
DELETE FROM notes
`

func (q *Queries) DeleteAllNotes(ctx context.Context) (int64, error) {
	result, err := q.db.Exec(ctx, deleteAllNotes)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteAllClaimDetails = `-- name: DeleteAllClaimDetails :execrows
DELETE FROM claim_details
`

func (q *Queries) DeleteAllClaimDetails(ctx context.Context) (int64, error) {
	result, err := q.db.Exec(ctx, deleteAllClaimDetails)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteAllClaims = `-- name: DeleteAllClaims :execrows
DELETE FROM claims
`

func (q *Queries) DeleteAllClaims(ctx context.Context) (int64, error) {
	result, err := q.db.Exec(ctx, deleteAllClaims)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const toggleClaimFlag = `-- name: ToggleClaimFlag :execrows
UPDATE claims SET flagged = NOT flagged WHERE id = $1
`

func (q *Queries) ToggleClaimFlag(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, toggleClaimFlag, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const claimStats = `-- name: ClaimStats :one
SELECT
    COUNT(*) AS total,
    COUNT(*) FILTER (WHERE flagged) AS flagged,
    AVG(billed_amount - paid_amount) AS avg_underpayment
FROM claims
`

func (q *Queries) ClaimStats(ctx context.Context) (ClaimStats, error) {
	var i ClaimStats
	err := q.db.QueryRow(ctx, claimStats).Scan(&i.Total, &i.Flagged, &i.AvgUnderpayment)
	return i, err
}

const lockImports = `-- name: LockImports :exec
SELECT pg_advisory_xact_lock($1)
`

// LockImports blocks until the transaction-scoped advisory lock key is free.
func (q *Queries) LockImports(ctx context.Context, key int64) error {
	_, err := q.db.Exec(ctx, lockImports, key)
	return err
}
