package migrations

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/infrastructure/database"
)

func openMigrated(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "vdcd.db"), WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestSchemaTables(t *testing.T) {
	db := openMigrated(t)
	for _, table := range []string{"vdsd_records", "state_history", "audit_logs"} {
		var name string
		err := db.QueryRowContext(context.Background(),
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	_, pending, err := db.GetMigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending migrations = %d, want 0", len(pending))
	}
}

// The repositories of the device package must work against the migrated
// schema, not only against their test fixtures.
func TestSchemaServesRepositories(t *testing.T) {
	db := openMigrated(t)
	ctx := context.Background()
	id := dsuid.FromName("schema-test", dsuid.NamespaceVDC)

	repo := device.NewSQLiteRepository(db.DB)
	if err := repo.Save(ctx, &device.Record{DSUID: id.String(), DeviceDSUID: id.String(), Name: "lamp"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rec, err := repo.GetByID(ctx, id.String())
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.Name != "lamp" {
		t.Errorf("Name = %q, want lamp", rec.Name)
	}

	hist := device.NewSQLiteStateHistoryRepository(db.DB)
	entry := device.StateHistoryEntry{DSUID: id.String(), Kind: device.HistoryKindChannel, Value: 42, Source: device.HistorySourceDriver}
	if err := hist.RecordStateChange(ctx, entry); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}
	got, err := hist.GetHistory(ctx, id.String(), 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(got) != 1 || got[0].Value != 42 {
		t.Errorf("GetHistory() = %+v, want one entry of 42", got)
	}
}
