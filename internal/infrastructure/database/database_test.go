package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nerrad567/vdc-core/internal/infrastructure/config"
)

const settingsTable = `CREATE TABLE vdsd_settings (dsuid TEXT PRIMARY KEY, name TEXT NOT NULL) STRICT`

func TestOpen(t *testing.T) {
	tests := []struct {
		name string
		rel  string
		wal  bool
	}{
		{"flat file", "vdcd.db", true},
		{"nested directories", filepath.Join("var", "lib", "vdcd", "vdcd.db"), true},
		{"rollback journal", "journal.db", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.rel)
			db, err := Open(Config{Path: path, WALMode: tt.wal, BusyTimeout: 1})
			if err != nil {
				t.Fatalf("Open(%q) error = %v", path, err)
			}
			defer db.Close() //nolint:errcheck // test cleanup

			if db.Path() != path {
				t.Errorf("Path() = %q, want %q", db.Path(), path)
			}
			if _, err := os.Stat(path); err != nil {
				t.Errorf("database file missing: %v", err)
			}

			var mode string
			if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
				t.Fatalf("PRAGMA journal_mode error = %v", err)
			}
			if got := mode == "wal"; got != tt.wal {
				t.Errorf("journal_mode = %q, WAL wanted %v", mode, tt.wal)
			}
		})
	}
}

func TestOpen_UnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	// A regular file where the directory should be.
	if _, err := Open(Config{Path: filepath.Join(blocker, "vdcd.db")}); err == nil {
		t.Error("Open() under a regular file succeeded, want error")
	}
}

func TestOpenMemory(t *testing.T) {
	db, err := Open(Config{Path: MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open(%q) error = %v", MemoryPath, err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	mustExec(t, db, settingsTable)
	// Later statements must see the table created by the first.
	mustExec(t, db, "INSERT INTO vdsd_settings (dsuid, name) VALUES (?, ?)", "A1", "Hall")

	var name string
	if err := db.QueryRowContext(ctx, "SELECT name FROM vdsd_settings WHERE dsuid = ?", "A1").Scan(&name); err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	if name != "Hall" {
		t.Errorf("name = %q, want Hall", name)
	}
	if db.Stats().MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", db.Stats().MaxOpenConnections)
	}
}

func TestConfigFrom(t *testing.T) {
	got := ConfigFrom(config.DatabaseConfig{Path: "/var/lib/vdcd/vdcd.db", WALMode: true, BusyTimeout: 7})
	want := Config{Path: "/var/lib/vdcd/vdcd.db", WALMode: true, BusyTimeout: 7}
	if got != want {
		t.Errorf("ConfigFrom() = %+v, want %+v", got, want)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() after Close succeeded, want error")
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() without a handle = %v, want nil", err)
	}
}

func TestExecContext_WrapsErrors(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	_, err := db.ExecContext(context.Background(), "INSERT INTO missing_table VALUES (1)")
	if err == nil {
		t.Fatal("ExecContext() on a missing table succeeded, want error")
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("ExecContext() error %q is not wrapped", err)
	}
}

func TestBeginTx(t *testing.T) {
	tests := []struct {
		name   string
		finish func(*sql.Tx) error
		want   int
	}{
		{"commit keeps the row", (*sql.Tx).Commit, 1},
		{"rollback discards the row", (*sql.Tx).Rollback, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			defer db.Close() //nolint:errcheck // test cleanup
			mustExec(t, db, settingsTable)

			ctx := context.Background()
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("BeginTx() error = %v", err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO vdsd_settings (dsuid, name) VALUES (?, ?)", "B2", "Desk"); err != nil {
				t.Fatalf("INSERT error = %v", err)
			}
			if err := tt.finish(tx); err != nil {
				t.Fatalf("finishing tx: %v", err)
			}

			var n int
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vdsd_settings").Scan(&n); err != nil {
				t.Fatalf("COUNT error = %v", err)
			}
			if n != tt.want {
				t.Errorf("rows = %d, want %d", n, tt.want)
			}
		})
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "vdcd.db"), WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	return db
}

func mustExec(t *testing.T, db *DB, query string, args ...any) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
}
