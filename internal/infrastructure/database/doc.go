// Package database provides the SQLite store of the vDC host daemon.
//
// It holds two tables, created by the embedded migrations in the
// top-level migrations package:
//
//   - vdsd_records: CBOR-encoded settings of vdSDs, vDCs and the host
//   - state_history: channel and input value changes, pruned by age
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are files named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. New columns must be nullable or carry a
// default.
package database
