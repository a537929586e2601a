package core

import "context"

// ClaimRepository is the claim-side storage contract. Implementations return
// errors wrapping ErrNotFound for missing claims.
type ClaimRepository interface {
	// GetClaim returns the claim with its detail, if any.
	GetClaim(ctx context.Context, id int64) (Claim, error)
	ListClaims(ctx context.Context, f ClaimFilter, limit, offset int) ([]Claim, error)
	CountClaims(ctx context.Context, f ClaimFilter) (int64, error)

	// UpsertClaim inserts the claim or overwrites every imported column of an
	// existing one. Flagged is never changed by an update.
	UpsertClaim(ctx context.Context, c Claim) (created bool, err error)
	UpsertClaimDetail(ctx context.Context, d ClaimDetail) (created bool, err error)

	// DeleteAllClaims removes notes, then details, then claims.
	DeleteAllClaims(ctx context.Context) (WipeCounts, error)

	ToggleFlag(ctx context.Context, id int64) (Claim, error)
	AddNote(ctx context.Context, n Note) (Note, error)
	ListNotes(ctx context.Context, claimID int64) ([]Note, error)
	Stats(ctx context.Context) (DashboardStats, error)

	// LockImports blocks until no other import holds the store-wide import
	// lock. Only meaningful inside WithTx; the lock is released on commit or
	// rollback.
	LockImports(ctx context.Context) error
}

// UserRepository stores application accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	// DeleteUser removes the account; its notes remain with no author.
	DeleteUser(ctx context.Context, id int64) error
}

// Store is a complete storage backend.
type Store interface {
	ClaimRepository
	UserRepository

	// WithTx runs fn in a single transaction. A non-nil error from fn rolls
	// back every write fn made.
	WithTx(ctx context.Context, fn func(repo ClaimRepository) error) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
