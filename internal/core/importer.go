package core

// importer.go sequences a bulk import.
//
// The whole import runs in one store transaction:
//
//  1. take the store-wide import lock
//  2. in overwrite mode, delete every note, detail and claim
//  3. parse and reconcile the claims file completely
//  4. parse and link the details file completely
//
// Any failure rolls everything back, so an overwrite is never half applied
// and readers never see a table that has been wiped but not yet refilled.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/claimdesk/internal/logging"
)

// ImportMode decides whether existing claims survive an import.
type ImportMode string

const (
	ModeOverwrite ImportMode = "overwrite"
	ModeAppend    ImportMode = "append"
)

// ParseImportMode parses a mode token.
func ParseImportMode(s string) (ImportMode, error) {
	switch m := ImportMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeOverwrite, ModeAppend:
		return m, nil
	}
	return "", ValidationError{Field: "mode", Value: s, Message: "unknown import mode (use overwrite or append)"}
}

// ImportPolicy decides what happens to a malformed record.
type ImportPolicy string

const (
	// PolicyAtomic aborts the whole import on the first malformed record.
	PolicyAtomic ImportPolicy = "atomic"
	// PolicyBestEffort skips malformed records with a warning.
	PolicyBestEffort ImportPolicy = "best_effort"
)

// ParseImportPolicy parses a policy token. "best-effort" is accepted as an
// alias.
func ParseImportPolicy(s string) (ImportPolicy, error) {
	switch p := ImportPolicy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")); p {
	case PolicyAtomic, PolicyBestEffort:
		return p, nil
	}
	return "", ValidationError{Field: "policy", Value: s, Message: "unknown import policy (use atomic or best_effort)"}
}

// ImportRequest names the two input files and how to apply them. Empty Mode
// and Policy fall back to the service defaults.
type ImportRequest struct {
	Claims  Source
	Details Source
	Mode    ImportMode
	Policy  ImportPolicy
}

// ImportObserver is told about every finished import, committed or not, and
// about imports rejected because the import slot was busy (with a nil
// report).
type ImportObserver interface {
	ImportFinished(report *ImportReport, err error)
}

// Import runs an import and returns its report. When the import fails the
// report is still returned, with Committed false, alongside the error;
// only a rejected request (bad mode or policy, busy slot) returns a nil
// report.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportReport, error) {
	mode, policy, err := s.resolveImportOptions(req)
	if err != nil {
		return nil, err
	}

	report := newImportReport(uuid.NewString(), mode, policy)
	ctx = logging.ContextWithImportID(ctx, report.ID)
	log := logging.FromContext(ctx)

	if err := s.limiter.Acquire(ctx, report.ID); err != nil {
		log.Warn("import rejected", "error", err)
		s.notify(nil, err)
		return nil, err
	}
	defer s.limiter.Release()

	if s.opts.ImportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ImportTimeout)
		defer cancel()
	}

	log.Info("import started",
		"mode", mode,
		"policy", policy,
		"claims_file", req.Claims.displayName(),
		"details_file", req.Details.displayName(),
	)

	claimsSrc, claimsRead := counted(req.Claims)
	detailsSrc, detailsRead := counted(req.Details)

	err = s.store.WithTx(ctx, func(repo ClaimRepository) error {
		if err := repo.LockImports(ctx); err != nil {
			return fmt.Errorf("acquire import lock: %w", err)
		}

		if mode == ModeOverwrite {
			counts, err := repo.DeleteAllClaims(ctx)
			if err != nil {
				return fmt.Errorf("delete existing claims: %w", err)
			}
			report.wiped(counts)
		}

		if err := NewClaimReconciler(repo, policy, report).Reconcile(ctx, ClaimRecords(claimsSrc)); err != nil {
			return err
		}
		return NewDetailLinker(repo, policy, report).Link(ctx, DetailRecords(detailsSrc))
	})

	report.Duration = time.Since(report.Started)
	report.BytesRead = claimsRead.BytesRead() + detailsRead.BytesRead()
	if err != nil {
		report.Failure = err.Error()
		log.Warn("import aborted", "error", err, "bytes_read", report.BytesRead, "duration", report.Duration)
	} else {
		report.Committed = true
		s.invalidateStats()
		log.Info("import complete",
			"created", report.Created,
			"updated", report.Updated,
			"linked", report.Linked,
			"skipped_claims", report.SkippedClaims,
			"skipped_details", report.SkippedDetails,
			"missing_parents", report.MissingParents,
			"bytes_read", report.BytesRead,
			"duration", report.Duration,
		)
	}

	s.notify(report, err)
	return report, err
}

// notify tells the observer about a finished import. report is nil when the
// import was turned away before it started.
func (s *Service) notify(report *ImportReport, err error) {
	if s.opts.Observer != nil {
		s.opts.Observer.ImportFinished(report, err)
	}
}

func (s *Service) resolveImportOptions(req ImportRequest) (ImportMode, ImportPolicy, error) {
	rawMode := string(req.Mode)
	if rawMode == "" {
		rawMode = string(s.opts.DefaultMode)
	}
	mode, err := ParseImportMode(rawMode)
	if err != nil {
		return "", "", err
	}

	rawPolicy := string(req.Policy)
	if rawPolicy == "" {
		rawPolicy = string(s.opts.DefaultPolicy)
	}
	policy, err := ParseImportPolicy(rawPolicy)
	if err != nil {
		return "", "", err
	}
	return mode, policy, nil
}

// ImportStatus reports the import currently running in this process.
func (s *Service) ImportStatus() ImportStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until the running import, if any, finishes.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
