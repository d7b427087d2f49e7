// Package database opens the SQLite feedback database and provides the Store.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/cloudsignal/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// defaultPragmas are appended to file paths that carry no query string.
const defaultPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"

// NewDB opens the database at path and brings its schema up to date.
func NewDB(path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}

	db, err := sqlx.Connect("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A single connection serialises writers; batch and HTTP share the pool.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Debug("Database ready", "path", path)
	return db, nil
}

// CloseDB closes db, logging any failure.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// buildDSN adds the default pragmas unless path already has a query string
// or names an in-memory database.
func buildDSN(path string) string {
	if strings.Contains(path, "?") || strings.Contains(path, ":memory:") {
		return path
	}
	return path + "?" + defaultPragmas
}
