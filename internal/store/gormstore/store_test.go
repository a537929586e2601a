package gormstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/store/gormstore"
)

func openSQLite(t *testing.T) *gormstore.Store {
	t.Helper()
	store, err := gormstore.OpenSQLite(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func claim(id int64, patient, insurer, billed, paid string) core.Claim {
	return core.Claim{
		ID:            id,
		PatientName:   patient,
		BilledAmount:  decimal.RequireFromString(billed),
		PaidAmount:    decimal.RequireFromString(paid),
		Status:        core.DefaultStatus,
		InsurerName:   insurer,
		DischargeDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

// exerciseStore runs the same checks against any backend.
func exerciseStore(t *testing.T, store core.Store) {
	ctx := context.Background()

	created, err := store.UpsertClaim(ctx, claim(10, "Ana Lopez", "Acme Health", "1000.00", "250.50"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.UpsertClaim(ctx, claim(10, "Ana M. Lopez", "Acme Health", "1000.00", "250.50"))
	require.NoError(t, err)
	assert.False(t, created)

	_, err = store.UpsertClaim(ctx, claim(11, "Bo Chen", "100% Mutual", "500", "500"))
	require.NoError(t, err)

	created, err = store.UpsertClaimDetail(ctx, core.ClaimDetail{ClaimID: 10, DenialReason: "Coding error", CPTCodes: "99213"})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = store.UpsertClaimDetail(ctx, core.ClaimDetail{ClaimID: 10, DenialReason: "Fixed", CPTCodes: "99213,85025"})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.GetClaim(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Ana M. Lopez", got.PatientName)
	assert.Equal(t, "749.50", got.Underpayment().StringFixed(2))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got.DischargeDate)
	require.NotNil(t, got.Detail)
	assert.Equal(t, "Fixed", got.Detail.DenialReason)

	_, err = store.GetClaim(ctx, 404)
	assert.True(t, core.IsNotFound(err))

	t.Run("search", func(t *testing.T) {
		tests := []struct {
			name   string
			filter core.ClaimFilter
			want   []int64
		}{
			{"all", core.ClaimFilter{}, []int64{11, 10}},
			{"by id", core.ClaimFilter{Search: "11"}, []int64{11}},
			{"case insensitive", core.ClaimFilter{Search: "LOPEZ"}, []int64{10}},
			{"insurer", core.ClaimFilter{Search: "acme"}, []int64{10}},
			{"literal percent", core.ClaimFilter{Search: "100%"}, []int64{11}},
			{"percent is not a wildcard", core.ClaimFilter{Search: "%"}, []int64{11}},
			{"status", core.ClaimFilter{Status: "Pending"}, []int64{11, 10}},
			{"unknown status", core.ClaimFilter{Status: "Paid"}, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				list, err := store.ListClaims(ctx, tt.filter, 10, 0)
				require.NoError(t, err)
				var ids []int64
				for _, c := range list {
					ids = append(ids, c.ID)
				}
				assert.Equal(t, tt.want, ids)

				n, err := store.CountClaims(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, int64(len(tt.want)), n)
			})
		}
	})

	flagged, err := store.ToggleFlag(ctx, 10)
	require.NoError(t, err)
	assert.True(t, flagged.Flagged)

	// Re-import keeps the flag.
	_, err = store.UpsertClaim(ctx, claim(10, "Ana M. Lopez", "Acme Health", "1000.00", "250.50"))
	require.NoError(t, err)
	got, err = store.GetClaim(ctx, 10)
	require.NoError(t, err)
	assert.True(t, got.Flagged)

	_, err = store.ToggleFlag(ctx, 404)
	assert.True(t, core.IsNotFound(err))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalClaims)
	assert.Equal(t, int64(1), stats.FlaggedClaims)
	assert.Equal(t, "374.75", stats.AvgUnderpayment.StringFixed(2))

	u, err := store.CreateUser(ctx, core.User{Username: "reviewer", PasswordHash: "hash"})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, core.User{Username: "reviewer", PasswordHash: "hash"})
	assert.ErrorIs(t, err, core.ErrUsernameTaken)

	byName, err := store.GetUserByUsername(ctx, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = store.AddNote(ctx, core.Note{ClaimID: 10, AuthorID: &u.ID, Text: "first"})
	require.NoError(t, err)
	_, err = store.AddNote(ctx, core.Note{ClaimID: 10, Text: "second"})
	require.NoError(t, err)

	notes, err := store.ListNotes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first", notes[0].Text)
	assert.Equal(t, "reviewer", notes[0].AuthorName)

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	notes, err = store.ListNotes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Nil(t, notes[0].AuthorID)
	assert.Empty(t, notes[0].AuthorName)

	_, err = store.GetUser(ctx, u.ID)
	assert.True(t, core.IsNotFound(err))

	err = store.WithTx(ctx, func(repo core.ClaimRepository) error {
		require.NoError(t, repo.LockImports(ctx))
		counts, err := repo.DeleteAllClaims(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.WipeCounts{Claims: 2, Details: 1, Notes: 2}, counts)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	n, err := store.CountClaims(ctx, core.ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "rolled back wipe leaves claims in place")

	err = store.WithTx(ctx, func(repo core.ClaimRepository) error {
		_, err := repo.DeleteAllClaims(ctx)
		return err
	})
	require.NoError(t, err)
	n, err = store.CountClaims(ctx, core.ClaimFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.AvgUnderpayment.IsZero(), "empty table averages to zero")
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, openSQLite(t))
}

func TestSQLiteStore_MigrateIsRepeatable(t *testing.T) {
	store := openSQLite(t)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := gormstore.Open(gormstoreConfig("postgres", "x"))
	assert.ErrorContains(t, err, "unsupported driver")
}
