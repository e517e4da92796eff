package database

import (
	"testing"
	"testing/fstest"
)

func TestConfigNormalize(t *testing.T) {
	cfg := Config{Host: "db"}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Driver != DriverPostgres || cfg.Port != "5432" || cfg.SSLMode != "disable" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxConnections != 10 || cfg.ReadyTimeoutSeconds != 30 {
		t.Fatalf("unexpected pool defaults: %+v", cfg)
	}

	bad := []Config{
		{Driver: "mysql", DSN: "x"},
		{Driver: DriverSQLite},
		{Driver: DriverPostgres},
	}
	for _, c := range bad {
		c := c
		if err := c.Normalize(); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}

func TestDataSourceName(t *testing.T) {
	cfg := Config{Host: "db", Port: "5433", User: "bot", Password: "p@ss", Name: "todo", SSLMode: "disable"}
	want := "postgres://bot:p%40ss@db:5433/todo?sslmode=disable"
	if got := cfg.DataSourceName(); got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
	cfg.DSN = "postgres://override"
	if got := cfg.DataSourceName(); got != "postgres://override" {
		t.Fatalf("dsn override ignored: %q", got)
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql"}
	got := selectApplied(files, 1, 3)
	if len(got) != 2 || got[0] != "000002_b.up.sql" || got[1] != "000003_c.up.sql" {
		t.Fatalf("selectApplied = %v", got)
	}
	if got := selectApplied(files, 3, 3); got != nil {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}

func TestListMigrationFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"sqlite/000002_b.up.sql":   {Data: []byte("")},
		"sqlite/000001_a.up.sql":   {Data: []byte("")},
		"sqlite/000001_a.down.sql": {Data: []byte("")},
		"postgres/000001_a.up.sql": {Data: []byte("")},
	}
	got := listMigrationFiles(fsys, "sqlite")
	if len(got) != 2 || got[0] != "000001_a.up.sql" {
		t.Fatalf("listMigrationFiles = %v", got)
	}
}

func TestRunMigrationsSQLiteIdempotent(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, DSN: "file::memory:?_pragma=foreign_keys(1)"}
	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"sqlite/000001_notes.up.sql":   {Data: []byte("CREATE TABLE IF NOT EXISTS notes (id INTEGER PRIMARY KEY);")},
		"sqlite/000001_notes.down.sql": {Data: []byte("DROP TABLE IF EXISTS notes;")},
	}
	if err := RunMigrations(db, cfg, fsys); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(db, cfg, fsys); err != nil {
		t.Fatalf("second run: %v", err)
	}
	var n int
	if err := db.Get(&n, "SELECT COUNT(*) FROM notes"); err != nil {
		t.Fatalf("query migrated table: %v", err)
	}
}
