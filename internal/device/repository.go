package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for vdSD settings persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves the record of a vdSD by dSUID.
	// Returns ErrDeviceNotFound if no record exists.
	GetByID(ctx context.Context, id string) (*Record, error)

	// List retrieves all records ordered by dSUID.
	List(ctx context.Context) ([]Record, error)

	// ListByDevice retrieves the records of one physical device.
	ListByDevice(ctx context.Context, deviceID string) ([]Record, error)

	// Save inserts or replaces a record.
	Save(ctx context.Context, rec *Record) error

	// Delete removes a record by dSUID.
	// Returns ErrDeviceNotFound if no record exists.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite. Records are stored
// as deterministic CBOR blobs next to a few indexed columns.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves the record of a vdSD by dSUID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `SELECT record FROM vdsd_records WHERE dsuid = ?`

	var blob []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying vdsd record: %w", err)
	}
	return UnmarshalRecord(blob)
}

// List retrieves all records ordered by dSUID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	return r.queryRecords(ctx, `SELECT record FROM vdsd_records ORDER BY dsuid`)
}

// ListByDevice retrieves the records of one physical device.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID string) ([]Record, error) {
	return r.queryRecords(ctx, `SELECT record FROM vdsd_records WHERE device_dsuid = ? ORDER BY dsuid`, deviceID)
}

// Save inserts or replaces a record.
func (r *SQLiteRepository) Save(ctx context.Context, rec *Record) error {
	if rec.DSUID == "" {
		return fmt.Errorf("%w: record without dsuid", ErrInvalidRecord)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	blob, err := MarshalRecord(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO vdsd_records (dsuid, device_dsuid, name, record, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(dsuid) DO UPDATE SET
			device_dsuid = excluded.device_dsuid,
			name = excluded.name,
			record = excluded.record,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		rec.DSUID,
		rec.DeviceDSUID,
		rec.Name,
		blob,
		rec.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving vdsd record: %w", err)
	}
	return nil
}

// Delete removes a record by dSUID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM vdsd_records WHERE dsuid = ?", id)
	if err != nil {
		return fmt.Errorf("deleting vdsd record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// queryRecords executes a query and decodes the record column of each row.
func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vdsd records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scanning vdsd record: %w", err)
		}
		rec, err := UnmarshalRecord(blob)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vdsd records: %w", err)
	}
	return records, nil
}
