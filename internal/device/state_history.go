package device

import (
	"context"
	"time"
)

// State history source values.
const (
	HistorySourceDriver = "driver"
	HistorySourceVdsm   = "vdsm"
	HistorySourceScene  = "scene"
)

// State history kinds.
const (
	HistoryKindChannel = "channel"
	HistoryKindSensor  = "sensor"
	HistoryKindBinary  = "binary"
	HistoryKindButton  = "button"
)

// StateHistoryEntry represents a single value change of a vdSD.
//
// Each entry records one channel or input value at the time the change was
// observed. This provides a local audit trail even when the time-series
// database is unavailable.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DSUID is the identifier of the vdSD.
	DSUID string `json:"dsuid"`

	// Kind is one of channel, sensor, binary or button.
	Kind string `json:"kind"`

	// Index is the channel type for channels and the input index otherwise.
	Index int `json:"index"`

	// Value is the recorded value; binary inputs use 0 and 1, buttons the click type.
	Value float64 `json:"value"`

	// Source identifies how the change was recorded (driver, vdsm, scene).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves vdSD value history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records one value change.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entry: Change to persist; ID and CreatedAt are assigned by the store
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordStateChange(ctx context.Context, entry StateHistoryEntry) error

	// GetHistory returns recent value history for the vdSD.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - id: vdSD dSUID
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []StateHistoryEntry: Ordered newest-first history entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, id string, limit int) ([]StateHistoryEntry, error)
}
