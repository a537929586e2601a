package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Claim struct {
	ID            int64
	PatientName   string
	BilledAmount  pgtype.Numeric
	PaidAmount    pgtype.Numeric
	Status        string
	InsurerName   string
	DischargeDate pgtype.Date
	Flagged       bool
}

// ClaimWithDetail is a claim row left-joined with its detail.
type ClaimWithDetail struct {
	Claim
	DetailClaimID pgtype.Int8
	DenialReason  pgtype.Text
	CptCodes      pgtype.Text
}

type ClaimDetail struct {
	ClaimID      int64
	DenialReason string
	CptCodes     string
}

type Note struct {
	ID        int64
	ClaimID   int64
	AuthorID  pgtype.Int8
	Text      string
	CreatedAt pgtype.Timestamptz
}

// NoteWithAuthor is a note left-joined with its author's username.
type NoteWithAuthor struct {
	Note
	AuthorName pgtype.Text
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    pgtype.Timestamptz
}

type ClaimStats struct {
	Total           int64
	Flagged         int64
	AvgUnderpayment pgtype.Numeric
}
