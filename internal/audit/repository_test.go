package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			dsuid TEXT,
			details TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Kind: "session", Details: map[string]any{"state": "active", "vdsm": "AA"}, CreatedAt: base},
		{Kind: "announce", DSUID: "D1", Details: map[string]any{"type": "vdSD"}, CreatedAt: base.Add(time.Second)},
		{Kind: "announce", DSUID: "D2", CreatedAt: base.Add(2 * time.Second)},
		{Kind: "remove", DSUID: "D1", CreatedAt: base.Add(3 * time.Second)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" {
			t.Error("Create() did not assign an ID")
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantKinds []string
	}{
		{"all newest first", Filter{}, 4, []string{"remove", "announce", "announce", "session"}},
		{"by kind", Filter{Kind: "announce"}, 2, []string{"announce", "announce"}},
		{"by dsuid", Filter{DSUID: "D1"}, 2, []string{"remove", "announce"}},
		{"paged", Filter{Limit: 2, Offset: 1}, 4, []string{"announce", "announce"}},
		{"no match", Filter{Kind: "vanish"}, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Entries) != len(tt.wantKinds) {
				t.Fatalf("len(Entries) = %d, want %d", len(res.Entries), len(tt.wantKinds))
			}
			for i, k := range tt.wantKinds {
				if res.Entries[i].Kind != k {
					t.Errorf("Entries[%d].Kind = %q, want %q", i, res.Entries[i].Kind, k)
				}
			}
		})
	}

	res, err := repo.List(ctx, Filter{Kind: "session"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := res.Entries[0]
	if got.Details["vdsm"] != "AA" {
		t.Errorf("Details = %v, want vdsm AA", got.Details)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}
}

func TestSQLiteRepository_ListLimits(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	res, err := repo.List(context.Background(), Filter{Limit: 1000, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != maxLimit || res.Offset != 0 {
		t.Errorf("Limit, Offset = %d, %d, want %d, 0", res.Limit, res.Offset, maxLimit)
	}
	if res.Entries == nil {
		t.Error("Entries should be an empty slice, not nil")
	}
}

func TestSQLiteRepository_PruneHistory(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for _, ts := range []time.Time{now.Add(-72 * time.Hour), now.Add(-48 * time.Hour), now} {
		if err := repo.Create(ctx, &Entry{Kind: "vanish", CreatedAt: ts}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, err := repo.PruneHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if n != 2 {
		t.Errorf("PruneHistory() = %d, want 2", n)
	}
	res, _ := repo.List(ctx, Filter{})
	if res.Total != 1 {
		t.Errorf("Total after prune = %d, want 1", res.Total)
	}
}
