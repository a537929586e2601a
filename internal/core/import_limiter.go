package core

// import_limiter.go serializes imports within one process.
//
// Only one import may run at a time. A second caller waits up to maxWait
// for the running import to finish and then fails with ErrImportBusy.
// Imports started by other processes are kept apart by the store lock taken
// inside the import transaction.

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultImportWait is how long to wait for the import slot before rejecting.
const DefaultImportWait = 30 * time.Second

// ImportLimiter guards the single import slot.
type ImportLimiter struct {
	sem     *semaphore.Weighted
	maxWait time.Duration

	mu      sync.RWMutex
	current ImportStatus
}

// ImportStatus describes the import holding the slot, if any.
type ImportStatus struct {
	Running   bool      `json:"running"`
	ImportID  string    `json:"import_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// NewImportLimiter creates a limiter whose callers wait at most maxWait.
func NewImportLimiter(maxWait time.Duration) *ImportLimiter {
	if maxWait <= 0 {
		maxWait = DefaultImportWait
	}
	return &ImportLimiter{
		sem:     semaphore.NewWeighted(1),
		maxWait: maxWait,
	}
}

// Acquire takes the import slot for importID. It returns ErrImportBusy when
// the wait expires and ctx.Err() when ctx ends first. The caller must call
// Release after a successful Acquire.
func (l *ImportLimiter) Acquire(ctx context.Context, importID string) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrImportBusy
		}
		return err
	}

	l.mu.Lock()
	l.current = ImportStatus{Running: true, ImportID: importID, StartedAt: time.Now()}
	l.mu.Unlock()
	return nil
}

// TryAcquire takes the slot only if it is free right now.
func (l *ImportLimiter) TryAcquire(importID string) bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.mu.Lock()
	l.current = ImportStatus{Running: true, ImportID: importID, StartedAt: time.Now()}
	l.mu.Unlock()
	return true
}

// Release frees the slot. Must be called exactly once per successful
// Acquire or TryAcquire.
func (l *ImportLimiter) Release() {
	l.mu.Lock()
	l.current = ImportStatus{}
	l.mu.Unlock()
	l.sem.Release(1)
}

// Status returns a snapshot of the slot.
func (l *ImportLimiter) Status() ImportStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// WaitForDrain blocks until no import is running or ctx ends. Used during
// graceful shutdown.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.sem.Release(1)
	return nil
}
