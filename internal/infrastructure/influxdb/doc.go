// Package influxdb records vDC host activity in InfluxDB v2.
//
// It wraps influxdb-client-go with batching writes of:
//   - vdsd_value: channel, sensor, binary input and button values
//   - vdsm_session: session start and end
//   - property_push: pushes sent to the vdSM
//   - notification: per-target notification outcomes
//
// The local state_history table keeps a short history even when InfluxDB
// is unavailable; InfluxDB is the long-term store.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without time-series storage
//	}
//	defer client.Close()
//
//	client.WriteVdsdValue(id, "sensor", 0, 21.5, "driver", time.Now())
package influxdb
