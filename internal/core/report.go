package core

import (
	"fmt"
	"strings"
	"time"
)

// EntryKind classifies a report line.
type EntryKind string

const (
	EntryWiped         EntryKind = "wiped"
	EntryCreated       EntryKind = "created"
	EntryUpdated       EntryKind = "updated"
	EntryLinked        EntryKind = "linked"
	EntrySkipped       EntryKind = "skipped"
	EntryMissingParent EntryKind = "missing_parent"
)

// ReportEntry is one line of an import report.
type ReportEntry struct {
	Kind    EntryKind `json:"kind"`
	Message string    `json:"message"`
}

// ImportReport is the outcome of one import. Entries are in the order the
// work happened. When Committed is false nothing in the report was kept.
type ImportReport struct {
	ID       string        `json:"id"`
	Mode     ImportMode    `json:"mode"`
	Policy   ImportPolicy  `json:"policy"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`

	// BytesRead is the input consumed from both files.
	BytesRead int64 `json:"bytes_read"`

	Entries []ReportEntry `json:"entries"`

	Wiped          WipeCounts `json:"wiped"`
	Created        int        `json:"created"`
	Updated        int        `json:"updated"`
	Linked         int        `json:"linked"`
	SkippedClaims  int        `json:"skipped_claims"`
	SkippedDetails int        `json:"skipped_details"`
	MissingParents int        `json:"missing_parents"`

	Committed bool   `json:"committed"`
	Failure   string `json:"failure,omitempty"`
}

func newImportReport(id string, mode ImportMode, policy ImportPolicy) *ImportReport {
	return &ImportReport{ID: id, Mode: mode, Policy: policy, Started: time.Now()}
}

func (r *ImportReport) add(kind EntryKind, format string, args ...any) {
	r.Entries = append(r.Entries, ReportEntry{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (r *ImportReport) wiped(c WipeCounts) {
	r.Wiped = c
	r.add(EntryWiped, "All existing claims and details deleted (overwrite mode).")
}

func (r *ImportReport) claimApplied(id int64, created bool) {
	if created {
		r.Created++
		r.add(EntryCreated, "Created claim %d", id)
		return
	}
	r.Updated++
	r.add(EntryUpdated, "Updated claim %d", id)
}

func (r *ImportReport) claimSkipped(ve ValidationError) {
	r.SkippedClaims++
	r.add(EntrySkipped, "Skipping claim record #%d: %s", ve.Record, ve.Reason())
}

func (r *ImportReport) detailLinked(claimID int64) {
	r.Linked++
	r.add(EntryLinked, "Linked details for claim %d", claimID)
}

func (r *ImportReport) detailSkipped(ve ValidationError) {
	r.SkippedDetails++
	r.add(EntrySkipped, "Skipping detail record #%d: %s", ve.Record, ve.Reason())
}

func (r *ImportReport) missingParent(w MissingParentWarning) {
	r.MissingParents++
	r.add(EntryMissingParent, "%s", w.String())
}

// Warnings returns the entries describing skipped input.
func (r *ImportReport) Warnings() []ReportEntry {
	var out []ReportEntry
	for _, e := range r.Entries {
		if e.Kind == EntrySkipped || e.Kind == EntryMissingParent {
			out = append(out, e)
		}
	}
	return out
}

// Summary is the final line of the report.
func (r *ImportReport) Summary() string {
	if !r.Committed {
		reason := r.Failure
		if reason == "" {
			reason = "unknown error"
		}
		return "Import aborted, no changes applied: " + reason
	}
	return fmt.Sprintf("Data import complete. %d created, %d updated, %d details linked, %d skipped.",
		r.Created, r.Updated, r.Linked, r.SkippedClaims+r.SkippedDetails+r.MissingParents)
}

// String renders one line per entry followed by the summary.
func (r *ImportReport) String() string {
	var b strings.Builder
	for _, e := range r.Entries {
		b.WriteString(e.Message)
		b.WriteByte('\n')
	}
	b.WriteString(r.Summary())
	return b.String()
}
