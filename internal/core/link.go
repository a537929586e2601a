package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// DetailLinker attaches detail records to existing claims. A detail whose
// claim does not exist is skipped with a warning, whatever the policy.
type DetailLinker struct {
	repo   ClaimRepository
	policy ImportPolicy
	report *ImportReport
}

func NewDetailLinker(repo ClaimRepository, policy ImportPolicy, report *ImportReport) *DetailLinker {
	return &DetailLinker{repo: repo, policy: policy, report: report}
}

// Link consumes records until exhausted. Malformed records follow the same
// policy as claims.
func (l *DetailLinker) Link(ctx context.Context, records iter.Seq2[DetailImportRecord, error]) error {
	for rec, recErr := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if recErr != nil {
			var ve ValidationError
			if errors.As(recErr, &ve) && l.policy == PolicyBestEffort {
				l.report.detailSkipped(ve)
				continue
			}
			return fmt.Errorf("details: %w", recErr)
		}

		if _, err := l.repo.GetClaim(ctx, rec.ClaimID); err != nil {
			if IsNotFound(err) {
				l.report.missingParent(MissingParentWarning{DetailID: rec.DetailID, ClaimID: rec.ClaimID})
				continue
			}
			return fmt.Errorf("look up claim %d: %w", rec.ClaimID, err)
		}

		if _, err := l.repo.UpsertClaimDetail(ctx, rec.Detail()); err != nil {
			return fmt.Errorf("upsert detail for claim %d: %w", rec.ClaimID, err)
		}
		l.report.detailLinked(rec.ClaimID)
	}
	return nil
}
