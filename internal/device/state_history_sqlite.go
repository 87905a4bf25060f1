package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ErrInvalidHistoryEntry is returned for a value change without a dSUID
// or kind.
var ErrInvalidHistoryEntry = errors.New("invalid history entry")

// SQLiteStateHistoryRepository keeps one state_history row per recorded
// value change. Timestamps are stored as second-precision RFC 3339 UTC
// strings, so the row id breaks ties within a second.
type SQLiteStateHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteStateHistoryRepository wraps an open database that carries the
// state_history table.
func NewSQLiteStateHistoryRepository(db *sql.DB) *SQLiteStateHistoryRepository {
	return &SQLiteStateHistoryRepository{db: db}
}

// RecordStateChange stores entry. An empty Source is recorded as driver
// and a zero CreatedAt as the current time.
func (r *SQLiteStateHistoryRepository) RecordStateChange(ctx context.Context, entry StateHistoryEntry) error {
	switch {
	case entry.DSUID == "":
		return fmt.Errorf("%w: dsuid is required", ErrInvalidHistoryEntry)
	case entry.Kind == "":
		return fmt.Errorf("%w: kind is required", ErrInvalidHistoryEntry)
	}
	if entry.Source == "" {
		entry.Source = HistorySourceDriver
	}
	at := entry.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO state_history (dsuid, kind, idx, value, source, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.DSUID, entry.Kind, entry.Index, entry.Value, entry.Source, historyStamp(at),
	); err != nil {
		return fmt.Errorf("recording %s %d of %s: %w", entry.Kind, entry.Index, entry.DSUID, err)
	}
	return nil
}

// GetHistory returns up to limit value changes of the vdSD id, newest
// first. limit is clamped to 1..200; zero or less means 50.
func (r *SQLiteStateHistoryRepository) GetHistory(ctx context.Context, id string, limit int) ([]StateHistoryEntry, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: dsuid is required", ErrInvalidHistoryEntry)
	}
	limit = clampHistoryLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, dsuid, kind, idx, value, source, created_at
		   FROM state_history
		  WHERE dsuid = ?
		  ORDER BY created_at DESC, id DESC
		  LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history of %s: %w", id, err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		e, err := scanHistoryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", id, err)
	}
	return entries, nil
}

// PruneHistory deletes the changes recorded more than olderThan ago and
// returns how many were removed.
func (r *SQLiteStateHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %v", olderThan)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM state_history WHERE created_at < ?`,
		historyStamp(time.Now().Add(-olderThan)))
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return res.RowsAffected()
}

func clampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}

func historyStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func scanHistoryRow(rows *sql.Rows) (StateHistoryEntry, error) {
	var (
		e     StateHistoryEntry
		stamp string
	)
	if err := rows.Scan(&e.ID, &e.DSUID, &e.Kind, &e.Index, &e.Value, &e.Source, &stamp); err != nil {
		return e, fmt.Errorf("scanning history row: %w", err)
	}
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return e, fmt.Errorf("history row %d: created_at %q: %w", e.ID, stamp, err)
	}
	e.CreatedAt = at
	return e, nil
}
