// Package store opens the storage backend named by the configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/claimdesk/internal/config"
	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/store/gormstore"
	"github.com/JonMunkholm/claimdesk/internal/store/pgstore"
)

// Open connects to the configured database and, when enabled, migrates it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (core.Store, error) {
	var (
		s   core.Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		s, err = pgstore.Open(ctx, cfg)
	case gormstore.DialectSQLite, gormstore.DialectMySQL:
		s, err = gormstore.Open(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Driver, err)
	}
	slog.Info("connected to database", "driver", cfg.Driver)

	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate %s database: %w", cfg.Driver, err)
		}
		slog.Debug("schema migrated", "driver", cfg.Driver)
	}
	return s, nil
}
