package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/claimdesk/internal/config"
	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/store"
)

func TestOpen_SQLiteMigrates(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, config.DatabaseConfig{
		Driver:      "sqlite",
		URL:         filepath.Join(t.TempDir(), "claims.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountClaims(ctx, core.ClaimFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), config.DatabaseConfig{Driver: "oracle", URL: "x"})
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
}
