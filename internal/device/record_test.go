package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupRecordTestDB creates an in-memory SQLite database with the vdsd_records table.
func setupRecordTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE vdsd_records (
			dsuid TEXT PRIMARY KEY,
			device_dsuid TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			record BLOB NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_vdsd_records_device ON vdsd_records(device_dsuid);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// customisedDimmer returns a test dimmer with non-default settings.
func customisedDimmer(t *testing.T) *Vdsd {
	t.Helper()
	v, _ := newTestDimmer(t)
	ctx := context.Background()

	v.name = "Hall"
	v.zoneID = 3
	v.output.PushChanges = true
	v.output.Groups[GroupJoker] = true
	v.output.DimTimes["dimTimeDown"] = 40
	v.output.MinBrightness = floatPtr(8)
	v.buttons[0].Function = 5
	v.buttons[0].SetsLocalPriority = true
	v.sensors[0].ChangesOnlyInterval = 60

	if err := v.SetChannelValue(ctx, ChannelBrightness, 33, true); err != nil {
		t.Fatalf("SetChannelValue() error = %v", err)
	}
	if err := v.SaveScene(20); err != nil {
		t.Fatalf("SaveScene() error = %v", err)
	}
	return v
}

func TestRecordRoundTrip(t *testing.T) {
	v := customisedDimmer(t)

	rec := v.Record("base-1")
	b, err := MarshalRecord(rec)
	if err != nil {
		t.Fatalf("MarshalRecord() error = %v", err)
	}
	again, err := MarshalRecord(rec)
	if err != nil {
		t.Fatalf("MarshalRecord() error = %v", err)
	}
	if string(b) != string(again) {
		t.Error("MarshalRecord() is not deterministic")
	}

	got, err := UnmarshalRecord(b)
	if err != nil {
		t.Fatalf("UnmarshalRecord() error = %v", err)
	}
	if got.DSUID != v.DSUID().String() || got.DeviceDSUID != "base-1" {
		t.Errorf("ids = %q, %q, want %q, base-1", got.DSUID, got.DeviceDSUID, v.DSUID())
	}
	if got.Name != "Hall" || got.ZoneID != 3 {
		t.Errorf("name, zone = %q, %d, want Hall, 3", got.Name, got.ZoneID)
	}
	if !got.UpdatedAt.Equal(testNow) {
		t.Errorf("UpdatedAt = %s, want %s", got.UpdatedAt, testNow)
	}
	if got.Output == nil {
		t.Fatal("Output record missing")
	}
	if len(got.Output.Groups) != 2 || got.Output.Groups[0] != GroupLight || got.Output.Groups[1] != GroupJoker {
		t.Errorf("Groups = %v, want [1 8]", got.Output.Groups)
	}
	if sv := got.Output.Scenes[20].Channels[0]; sv.Value != 33 || !sv.HasValue {
		t.Errorf("scene 20 channel = %+v, want 33", sv)
	}
	if got.Buttons[0].Function != 5 || !got.Buttons[0].SetsLocalPriority {
		t.Errorf("button record = %+v", got.Buttons[0])
	}
}

func TestUnmarshalRecordInvalid(t *testing.T) {
	if _, err := UnmarshalRecord([]byte{0xff, 0x00}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("UnmarshalRecord() error = %v, want ErrInvalidRecord", err)
	}
}

func TestRestore(t *testing.T) {
	rec := customisedDimmer(t).Record("base-1")
	rec.Buttons[7] = InputRecord{Group: 2}
	rec.Output.Scenes[30] = &Scene{Channels: map[int]SceneValue{0: {Value: 10, HasValue: true}, 4: {Value: 1, HasValue: true}}}

	v, _ := newTestDimmer(t)
	v.Restore(rec)

	if v.Name() != "Hall" || v.ZoneID() != 3 {
		t.Errorf("name, zone = %q, %d, want Hall, 3", v.Name(), v.ZoneID())
	}
	if !v.output.PushChanges || !v.output.Groups[GroupJoker] {
		t.Error("output settings not restored")
	}
	if v.output.DimTimes["dimTimeDown"] != 40 {
		t.Errorf("dimTimeDown = %d, want 40", v.output.DimTimes["dimTimeDown"])
	}
	if v.buttons[0].Function != 5 {
		t.Errorf("button function = %d, want 5", v.buttons[0].Function)
	}
	if v.sensors[0].ChangesOnlyInterval != 60 {
		t.Errorf("sensor changesOnlyInterval = %v, want 60", v.sensors[0].ChangesOnlyInterval)
	}
	s, _ := v.Scene(30)
	if _, ok := s.Channels[4]; ok {
		t.Error("scene 30 kept a value for a missing channel")
	}
	if _, ok := v.buttons[7]; ok {
		t.Error("restore created a button that the device does not have")
	}
}

func TestSQLiteRepository(t *testing.T) {
	db := setupRecordTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	v := customisedDimmer(t)
	rec := v.Record("base-1")

	if _, err := repo.GetByID(ctx, rec.DSUID); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("GetByID() before save error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec.Name = "Hallway"
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save() upsert error = %v", err)
	}

	got, err := repo.GetByID(ctx, rec.DSUID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Hallway" {
		t.Errorf("Name = %q, want Hallway", got.Name)
	}

	other := &Record{DSUID: "other", DeviceDSUID: "base-2", Name: "Other"}
	if err := repo.Save(ctx, other); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List() returned %d records, want 2", len(all))
	}
	mine, err := repo.ListByDevice(ctx, "base-1")
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(mine) != 1 || mine[0].DSUID != rec.DSUID {
		t.Errorf("ListByDevice() = %v, want the one record of base-1", mine)
	}

	if err := repo.Delete(ctx, rec.DSUID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, rec.DSUID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Delete() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepositoryRejectsEmptyID(t *testing.T) {
	repo := NewSQLiteRepository(setupRecordTestDB(t))

	if err := repo.Save(context.Background(), &Record{}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Save() error = %v, want ErrInvalidRecord", err)
	}
}
