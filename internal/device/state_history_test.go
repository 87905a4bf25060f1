package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const stateHistorySchema = `
CREATE TABLE state_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	dsuid TEXT NOT NULL,
	kind TEXT NOT NULL,
	idx INTEGER NOT NULL DEFAULT 0,
	value REAL NOT NULL,
	source TEXT NOT NULL DEFAULT 'driver',
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
) STRICT`

func newHistoryRepo(t *testing.T) *SQLiteStateHistoryRepository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(stateHistorySchema); err != nil {
		t.Fatalf("creating state_history: %v", err)
	}
	return NewSQLiteStateHistoryRepository(db)
}

func TestRecordStateChange(t *testing.T) {
	repo := newHistoryRepo(t)
	ctx := context.Background()

	in := StateHistoryEntry{DSUID: "A1", Kind: HistoryKindSensor, Index: 2, Value: 21.5}
	if err := repo.RecordStateChange(ctx, in); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}

	got, err := repo.GetHistory(ctx, "A1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetHistory() returned %d entries, want 1", len(got))
	}
	e := got[0]
	if e.Kind != HistoryKindSensor || e.Index != 2 || e.Value != 21.5 {
		t.Errorf("entry = %+v, want sensor 2 = 21.5", e)
	}
	if e.Source != HistorySourceDriver {
		t.Errorf("Source = %q, want default %q", e.Source, HistorySourceDriver)
	}
	if time.Since(e.CreatedAt) > time.Minute {
		t.Errorf("CreatedAt = %v, want about now", e.CreatedAt)
	}
}

func TestRecordStateChange_Invalid(t *testing.T) {
	repo := newHistoryRepo(t)
	for _, e := range []StateHistoryEntry{
		{Kind: HistoryKindChannel},
		{DSUID: "A1"},
	} {
		if err := repo.RecordStateChange(context.Background(), e); !errors.Is(err, ErrInvalidHistoryEntry) {
			t.Errorf("RecordStateChange(%+v) error = %v, want ErrInvalidHistoryEntry", e, err)
		}
	}
	if _, err := repo.GetHistory(context.Background(), "", 1); !errors.Is(err, ErrInvalidHistoryEntry) {
		t.Errorf("GetHistory(\"\") error = %v, want ErrInvalidHistoryEntry", err)
	}
}

func TestGetHistory_OrderAndLimit(t *testing.T) {
	repo := newHistoryRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	changes := []StateHistoryEntry{
		{DSUID: "A1", Kind: HistoryKindChannel, Value: 0, Source: HistorySourceVdsm, CreatedAt: now.Add(-2 * time.Hour)},
		{DSUID: "A1", Kind: HistoryKindChannel, Value: 50, CreatedAt: now.Add(-time.Hour)},
		{DSUID: "A1", Kind: HistoryKindChannel, Value: 100, Source: HistorySourceScene, CreatedAt: now},
		{DSUID: "B2", Kind: HistoryKindBinary, Value: 1, CreatedAt: now},
		// Same second as the previous A1 row: the later insert wins.
		{DSUID: "A1", Kind: HistoryKindButton, Value: 3, CreatedAt: now},
	}
	for _, c := range changes {
		if err := repo.RecordStateChange(ctx, c); err != nil {
			t.Fatalf("RecordStateChange(%+v) error = %v", c, err)
		}
	}

	tests := []struct {
		name   string
		limit  int
		values []float64
	}{
		{"limited", 2, []float64{3, 100}},
		{"default", 0, []float64{3, 100, 50, 0}},
		{"above max", maxHistoryLimit + 1, []float64{3, 100, 50, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetHistory(ctx, "A1", tt.limit)
			if err != nil {
				t.Fatalf("GetHistory() error = %v", err)
			}
			if len(got) != len(tt.values) {
				t.Fatalf("GetHistory() returned %d entries, want %d", len(got), len(tt.values))
			}
			for i, want := range tt.values {
				if got[i].Value != want {
					t.Errorf("entry[%d].Value = %v, want %v", i, got[i].Value, want)
				}
			}
		})
	}

	got, _ := repo.GetHistory(ctx, "A1", 10)
	if !got[2].CreatedAt.Equal(now.Add(-time.Hour)) {
		t.Errorf("entry[2].CreatedAt = %v, want %v", got[2].CreatedAt, now.Add(-time.Hour))
	}
}

func TestClampHistoryLimit(t *testing.T) {
	tests := map[int]int{-5: defaultHistoryLimit, 0: defaultHistoryLimit, 1: 1, 200: 200, 201: maxHistoryLimit}
	for in, want := range tests {
		if got := clampHistoryLimit(in); got != want {
			t.Errorf("clampHistoryLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestPruneHistory(t *testing.T) {
	repo := newHistoryRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, 12 * time.Hour} {
		e := StateHistoryEntry{DSUID: "A1", Kind: HistoryKindChannel, Value: age.Hours(), CreatedAt: now.Add(-age)}
		if err := repo.RecordStateChange(ctx, e); err != nil {
			t.Fatalf("RecordStateChange() error = %v", err)
		}
	}

	if _, err := repo.PruneHistory(ctx, 0); err == nil {
		t.Error("PruneHistory(0) succeeded, want error")
	}
	deleted, err := repo.PruneHistory(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("PruneHistory() deleted %d, want 2", deleted)
	}

	left, err := repo.GetHistory(ctx, "A1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(left) != 1 || left[0].Value != 12 {
		t.Errorf("remaining = %+v, want the 12h old change", left)
	}
}
