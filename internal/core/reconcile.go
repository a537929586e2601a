package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ClaimReconciler applies claim records to the store by id: unknown ids are
// inserted unflagged, known ids have every imported column overwritten.
type ClaimReconciler struct {
	repo   ClaimRepository
	policy ImportPolicy
	report *ImportReport
}

// NewClaimReconciler returns a reconciler writing through repo and
// recording into report.
func NewClaimReconciler(repo ClaimRepository, policy ImportPolicy, report *ImportReport) *ClaimReconciler {
	return &ClaimReconciler{repo: repo, policy: policy, report: report}
}

// Reconcile consumes records until exhausted. Format errors, store errors
// and (under PolicyAtomic) validation errors stop it and are returned.
func (c *ClaimReconciler) Reconcile(ctx context.Context, records iter.Seq2[ClaimImportRecord, error]) error {
	for rec, recErr := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if recErr != nil {
			var ve ValidationError
			if errors.As(recErr, &ve) && c.policy == PolicyBestEffort {
				c.report.claimSkipped(ve)
				continue
			}
			return fmt.Errorf("claims: %w", recErr)
		}

		created, err := c.repo.UpsertClaim(ctx, rec.Claim())
		if err != nil {
			return fmt.Errorf("upsert claim %d: %w", rec.ID, err)
		}
		c.report.claimApplied(rec.ID, created)
	}
	return nil
}
