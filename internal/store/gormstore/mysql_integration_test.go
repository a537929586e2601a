//go:build integration

package gormstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/JonMunkholm/claimdesk/internal/store/gormstore"
)

func TestMySQLStore(t *testing.T) {
	ctx := context.Background()

	ctr, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("claimdesk"),
		mysql.WithUsername("claimdesk"),
		mysql.WithPassword("claimdesk"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	store, err := gormstore.Open(gormstoreConfig(gormstore.DialectMySQL, dsn))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	exerciseStore(t, store)
}
