package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/claimdesk/internal/config"
	"github.com/JonMunkholm/claimdesk/internal/logging"
)

const statsCacheKey = "dashboard"

// Options tunes a Service.
type Options struct {
	PageSize      int
	DefaultMode   ImportMode
	DefaultPolicy ImportPolicy
	ImportTimeout time.Duration
	ImportMaxWait time.Duration
	StatsTTL      time.Duration // 0 disables caching
	Observer      ImportObserver
}

// OptionsFromConfig builds Options from the application configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PageSize:      cfg.Claims.PageSize,
		DefaultMode:   ImportMode(cfg.Import.DefaultMode),
		DefaultPolicy: ImportPolicy(cfg.Import.Policy),
		ImportTimeout: cfg.Import.Timeout,
		ImportMaxWait: cfg.Import.MaxWaitTime,
		StatsTTL:      cfg.Claims.StatsCacheTTL,
	}
}

// Service is the entry point for every claim operation, used by both the
// web server and the CLI.
type Service struct {
	store   Store
	opts    Options
	limiter *ImportLimiter

	stats      *cache.Cache // nil when caching is disabled
	statsGroup singleflight.Group
}

// NewService creates a Service over store.
func NewService(store Store, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = 15
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = ModeOverwrite
	}
	if opts.DefaultPolicy == "" {
		opts.DefaultPolicy = PolicyAtomic
	}

	s := &Service{
		store:   store,
		opts:    opts,
		limiter: NewImportLimiter(opts.ImportMaxWait),
	}
	if opts.StatsTTL > 0 {
		s.stats = cache.New(opts.StatsTTL, 2*opts.StatsTTL)
	}
	return s
}

// PageSize is the number of claims per list page.
func (s *Service) PageSize() int { return s.opts.PageSize }

// ImportDefaults returns the mode and policy used when a request names none.
func (s *Service) ImportDefaults() (ImportMode, ImportPolicy) {
	return s.opts.DefaultMode, s.opts.DefaultPolicy
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ListClaims returns one page of claims, newest id first. Out-of-range pages
// are clamped: anything below 1 becomes 1 and anything past the end becomes
// the last page.
func (s *Service) ListClaims(ctx context.Context, q ClaimQuery) (ClaimPage, error) {
	filter := ClaimFilter{
		Search: strings.TrimSpace(q.Search),
		Status: strings.TrimSpace(q.Status),
	}

	total, err := s.store.CountClaims(ctx, filter)
	if err != nil {
		return ClaimPage{}, fmt.Errorf("count claims: %w", err)
	}

	size := s.opts.PageSize
	totalPages := int((total + int64(size) - 1) / int64(size))
	if totalPages < 1 {
		totalPages = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	claims, err := s.store.ListClaims(ctx, filter, size, (page-1)*size)
	if err != nil {
		return ClaimPage{}, fmt.Errorf("list claims: %w", err)
	}

	return ClaimPage{
		Claims:     claims,
		Filter:     filter,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
		TotalRows:  total,
	}, nil
}

// GetClaim returns a claim with its detail and notes.
func (s *Service) GetClaim(ctx context.Context, id int64) (ClaimView, error) {
	claim, err := s.store.GetClaim(ctx, id)
	if err != nil {
		return ClaimView{}, err
	}
	notes, err := s.store.ListNotes(ctx, id)
	if err != nil {
		return ClaimView{}, fmt.Errorf("list notes for claim %d: %w", id, err)
	}
	return ClaimView{Claim: claim, Notes: notes}, nil
}

// ToggleFlag inverts the claim's flag and returns the updated claim.
func (s *Service) ToggleFlag(ctx context.Context, id int64) (Claim, error) {
	claim, err := s.store.ToggleFlag(ctx, id)
	if err != nil {
		return Claim{}, err
	}
	s.invalidateStats()
	logging.FromContext(ctx).Info("claim flag toggled", "claim_id", id, "flagged", claim.Flagged)
	return claim, nil
}

// AddNote attaches text to the claim and returns the claim's notes. Text is
// trimmed; blank text adds nothing. author may be nil.
func (s *Service) AddNote(ctx context.Context, claimID int64, author *User, text string) ([]Note, error) {
	if _, err := s.store.GetClaim(ctx, claimID); err != nil {
		return nil, err
	}

	if text = strings.TrimSpace(text); text != "" {
		note := Note{ClaimID: claimID, Text: text}
		if author != nil {
			id := author.ID
			note.AuthorID = &id
		}
		if _, err := s.store.AddNote(ctx, note); err != nil {
			return nil, fmt.Errorf("add note to claim %d: %w", claimID, err)
		}
	}

	notes, err := s.store.ListNotes(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("list notes for claim %d: %w", claimID, err)
	}
	return notes, nil
}

// DashboardStats returns aggregate statistics over all claims. Results are
// cached for Options.StatsTTL and recomputed after any write.
func (s *Service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	if s.stats != nil {
		if v, ok := s.stats.Get(statsCacheKey); ok {
			return v.(DashboardStats), nil
		}
	}

	v, err, _ := s.statsGroup.Do(statsCacheKey, func() (any, error) {
		stats, err := s.store.Stats(ctx)
		if err != nil {
			return nil, err
		}
		stats.ComputedAt = time.Now()
		if s.stats != nil {
			s.stats.SetDefault(statsCacheKey, stats)
		}
		return stats, nil
	})
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return v.(DashboardStats), nil
}

func (s *Service) invalidateStats() {
	if s.stats != nil {
		s.stats.Delete(statsCacheKey)
	}
	s.statsGroup.Forget(statsCacheKey)
}
