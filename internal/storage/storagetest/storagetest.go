// Package storagetest opens a migrated in-memory database for tests.
package storagetest

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/todobot/core/database"
	"github.com/m3rciful/todobot/internal/storage"
	"github.com/m3rciful/todobot/migrations"
)

// DSN is a private in-memory SQLite database with foreign keys enforced.
const DSN = "file::memory:?_pragma=foreign_keys(1)"

// Open returns a migrated in-memory database closed at test cleanup.
func Open(tb testing.TB) *sqlx.DB {
	tb.Helper()
	cfg := database.Config{Driver: database.DriverSQLite, DSN: DSN}
	db, err := database.Connect(cfg)
	if err != nil {
		tb.Fatalf("connect sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	if err := database.RunMigrations(db, cfg, migrations.FS); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// NewStore returns a Store over a fresh migrated database.
func NewStore(tb testing.TB) *storage.Store {
	tb.Helper()
	return storage.New(Open(tb))
}
