package gormstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/claimdesk/internal/core"
)

type claimRow struct {
	ID            int64           `gorm:"primaryKey;autoIncrement:false"`
	PatientName   string          `gorm:"size:255;not null"`
	BilledAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status        string          `gorm:"size:50;not null;index"`
	InsurerName   string          `gorm:"size:255;not null"`
	DischargeDate time.Time       `gorm:"type:date;not null"`
	Flagged       bool            `gorm:"not null;default:false"`

	Detail *detailRow `gorm:"foreignKey:ClaimID;constraint:OnDelete:CASCADE"`
	Notes  []noteRow  `gorm:"foreignKey:ClaimID;constraint:OnDelete:CASCADE"`
}

func (claimRow) TableName() string { return "claims" }

type detailRow struct {
	ClaimID      int64  `gorm:"primaryKey;autoIncrement:false"`
	DenialReason string `gorm:"type:text;not null"`
	CPTCodes     string `gorm:"column:cpt_codes;type:text;not null"`
}

func (detailRow) TableName() string { return "claim_details" }

type noteRow struct {
	ID        int64     `gorm:"primaryKey"`
	ClaimID   int64     `gorm:"not null;index"`
	AuthorID  *int64    `gorm:"index"`
	Author    *userRow  `gorm:"foreignKey:AuthorID;constraint:OnDelete:SET NULL"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (noteRow) TableName() string { return "notes" }

type userRow struct {
	ID           int64     `gorm:"primaryKey"`
	Username     string    `gorm:"size:150;not null;uniqueIndex"`
	PasswordHash string    `gorm:"size:255;not null"`
	IsAdmin      bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

// importLockRow is a single row updated at the start of every import so
// that concurrent imports queue on its row lock.
type importLockRow struct {
	ID       int `gorm:"primaryKey;autoIncrement:false"`
	LockedAt time.Time
}

func (importLockRow) TableName() string { return "import_locks" }

// noteView is a note joined with its author's username.
type noteView struct {
	ID         int64
	ClaimID    int64
	AuthorID   *int64
	AuthorName *string
	Text       string
	CreatedAt  time.Time
}

type statsRow struct {
	Total    int64
	Flagged  int64
	AvgUnder decimal.NullDecimal
}

func toClaimRow(c core.Claim) claimRow {
	return claimRow{
		ID:            c.ID,
		PatientName:   c.PatientName,
		BilledAmount:  c.BilledAmount,
		PaidAmount:    c.PaidAmount,
		Status:        c.Status,
		InsurerName:   c.InsurerName,
		DischargeDate: c.DischargeDate,
		Flagged:       c.Flagged,
	}
}

func (r claimRow) toCore() core.Claim {
	c := core.Claim{
		ID:            r.ID,
		PatientName:   r.PatientName,
		BilledAmount:  r.BilledAmount,
		PaidAmount:    r.PaidAmount,
		Status:        r.Status,
		InsurerName:   r.InsurerName,
		DischargeDate: dateOnly(r.DischargeDate),
		Flagged:       r.Flagged,
	}
	if r.Detail != nil {
		d := r.Detail.toCore()
		c.Detail = &d
	}
	return c
}

func (r detailRow) toCore() core.ClaimDetail {
	return core.ClaimDetail{ClaimID: r.ClaimID, DenialReason: r.DenialReason, CPTCodes: r.CPTCodes}
}

func (v noteView) toCore() core.Note {
	n := core.Note{
		ID:        v.ID,
		ClaimID:   v.ClaimID,
		AuthorID:  v.AuthorID,
		Text:      v.Text,
		CreatedAt: v.CreatedAt,
	}
	if v.AuthorName != nil {
		n.AuthorName = *v.AuthorName
	}
	return n
}

func (r userRow) toCore() core.User {
	return core.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		IsAdmin:      r.IsAdmin,
		CreatedAt:    r.CreatedAt,
	}
}

// dateOnly drops any time and zone the driver attached to a DATE column.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
