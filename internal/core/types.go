package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultStatus is assigned to claims imported without a status.
const DefaultStatus = "Pending"

// KnownStatuses populates the status filter. Imports may carry any status
// string; this list only drives the UI.
var KnownStatuses = []string{"Pending", "Paid", "Denied", "Under Review"}

// Claim is one insurance claim. The id comes from the source system and is
// never generated here.
type Claim struct {
	ID            int64
	PatientName   string
	BilledAmount  decimal.Decimal
	PaidAmount    decimal.Decimal
	Status        string
	InsurerName   string
	DischargeDate time.Time
	Flagged       bool

	// Detail is set by reads when the claim has a detail row.
	Detail *ClaimDetail
}

// Underpayment is billed minus paid.
func (c Claim) Underpayment() decimal.Decimal {
	return c.BilledAmount.Sub(c.PaidAmount)
}

func (c Claim) String() string {
	return fmt.Sprintf("Claim %d - %s", c.ID, c.PatientName)
}

// ClaimDetail holds the line-item detail of a claim. At most one exists per
// claim and it is removed with its claim.
type ClaimDetail struct {
	ClaimID      int64
	DenialReason string
	CPTCodes     string // comma-delimited
}

// CPTCodeList splits CPTCodes for display.
func (d ClaimDetail) CPTCodeList() []string {
	if strings.TrimSpace(d.CPTCodes) == "" {
		return nil
	}
	parts := strings.Split(d.CPTCodes, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

// Note is a free-text annotation on a claim. AuthorID is nil when the note
// was written anonymously or its author has since been deleted.
type Note struct {
	ID         int64
	ClaimID    int64
	AuthorID   *int64
	AuthorName string
	Text       string
	CreatedAt  time.Time
}

// User is an application account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// ClaimView is a claim together with its notes, as shown on the detail page.
type ClaimView struct {
	Claim Claim
	Notes []Note
}

// ClaimFilter narrows a claim listing. Search is a case-insensitive
// substring matched against id, patient and insurer; Status is exact.
type ClaimFilter struct {
	Search string
	Status string
}

// ClaimQuery is a filtered request for one page of claims.
type ClaimQuery struct {
	ClaimFilter
	Page int
}

// ClaimPage is one page of a claim listing.
type ClaimPage struct {
	Claims     []Claim
	Filter     ClaimFilter
	Page       int
	PageSize   int
	TotalPages int
	TotalRows  int64
}

func (p ClaimPage) HasPrev() bool { return p.Page > 1 }
func (p ClaimPage) HasNext() bool { return p.Page < p.TotalPages }
func (p ClaimPage) PrevPage() int { return p.Page - 1 }
func (p ClaimPage) NextPage() int { return p.Page + 1 }

// DashboardStats aggregates the whole claim table.
type DashboardStats struct {
	TotalClaims     int64
	FlaggedClaims   int64
	AvgUnderpayment decimal.Decimal
	ComputedAt      time.Time
}

// WipeCounts reports what an overwrite removed.
type WipeCounts struct {
	Claims  int64
	Details int64
	Notes   int64
}

// LikePattern turns a search term into a substring LIKE pattern, escaping
// the wildcard characters with a backslash.
func LikePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(search)) + "%"
}
