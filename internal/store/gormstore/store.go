// Package gormstore implements core.Store on GORM for SQLite and MySQL.
package gormstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/JonMunkholm/claimdesk/internal/config"
	"github.com/JonMunkholm/claimdesk/internal/core"
)

// Dialects supported by this store.
const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
)

// Store is a core.Store backed by GORM.
type Store struct {
	*repo
}

// Open connects to the database named by cfg. cfg.Driver must be sqlite or
// mysql. SQLite connections get foreign keys enabled and a busy timeout;
// MySQL DSNs should include parseTime=True.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DialectSQLite:
		dialector = sqlite.Open(sqliteDSN(cfg.URL))
	case DialectMySQL:
		dialector = mysql.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("gormstore: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get %s connection pool: %w", cfg.Driver, err)
	}
	if cfg.Driver == DialectSQLite {
		// One connection: SQLite has a single writer and in-memory
		// databases are per connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MinConns)
		sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}

	return &Store{repo: &repo{db: db, dialect: cfg.Driver}}, nil
}

// OpenSQLite opens a SQLite database file with default settings.
func OpenSQLite(path string) (*Store, error) {
	return Open(config.DatabaseConfig{Driver: DialectSQLite, URL: path})
}

func sqliteDSN(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_foreign_keys") && !strings.Contains(dsn, "_fk=") {
		params = append(params, "_foreign_keys=1")
	}
	if !strings.Contains(dsn, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func newLogger() gormlogger.Interface {
	return gormlogger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Migrate creates or updates the schema and seeds the import lock row.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&userRow{}, &claimRow{}, &detailRow{}, &noteRow{}, &importLockRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.FirstOrCreate(&importLockRow{ID: 1}, importLockRow{ID: 1}).Error; err != nil {
		return fmt.Errorf("seed import lock: %w", err)
	}
	return nil
}

// WithTx runs fn inside a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(core.ClaimRepository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repo{db: tx, dialect: s.dialect})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ core.Store = (*Store)(nil)
