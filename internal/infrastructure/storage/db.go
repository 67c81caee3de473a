// Package storage implements persistence for Power Control Center
// using Bun ORM over SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/NotCoffee418/power-control-center/internal/infrastructure/storage/models"
)

// Config holds database configuration.
type Config struct {
	// Path is the SQLite database file; ":memory:" for tests.
	Path  string
	Debug bool
}

// NewDB opens the SQLite database and configures it for a single
// long-lived process: WAL journal and a busy timeout so the action-log
// writer and the REST handlers can coexist.
func NewDB(cfg *Config) (*bun.DB, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", cfg.Path)
	if cfg.Path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids lock
	// contention between the action log and the editor endpoints.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxIdleTime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}

	registerModels(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database opened", slog.String("path", cfg.Path))

	return db, nil
}

// registerModels registers all Bun models.
func registerModels(db *bun.DB) {
	db.RegisterModel(
		(*models.ActionModel)(nil),
		(*models.CauseReasonModel)(nil),
		(*models.NodesetModel)(nil),
		(*models.SettingModel)(nil),
	)
}

// Close closes the database connection.
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
