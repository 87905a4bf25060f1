package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementValue        = "vdsd_value"
	MeasurementSession      = "vdsm_session"
	MeasurementPush         = "property_push"
	MeasurementNotification = "notification"
)

// WriteVdsdValue records a channel, sensor, binary input or button value of
// a vdSD. kind and index are tags; index is the channel type for channels.
func (c *Client) WriteVdsdValue(dsuid, kind string, index int, value float64, source string, ts time.Time) {
	c.WritePointWithTime(MeasurementValue,
		map[string]string{
			"dsuid":  dsuid,
			"kind":   kind,
			"index":  strconv.Itoa(index),
			"source": source,
		},
		map[string]any{"value": value},
		ts)
}

// WriteSessionState records a vdSM session becoming active or ending.
func (c *Client) WriteSessionState(vdsm string, active bool, ts time.Time) {
	state := 0
	if active {
		state = 1
	}
	c.WritePointWithTime(MeasurementSession,
		map[string]string{"vdsm": vdsm},
		map[string]any{"active": state},
		ts)
}

// WritePush records one property push to the vdSM.
func (c *Client) WritePush(dsuid string, properties int, ts time.Time) {
	c.WritePointWithTime(MeasurementPush,
		map[string]string{"dsuid": dsuid},
		map[string]any{"properties": properties},
		ts)
}

// WriteNotification records a notification delivered to one target.
func (c *Client) WriteNotification(dsuid, msgType string, ok bool, ts time.Time) {
	c.WritePointWithTime(MeasurementNotification,
		map[string]string{"dsuid": dsuid, "type": msgType},
		map[string]any{"ok": ok},
		ts)
}

// WritePoint writes a custom point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Time{})
}

// WritePointWithTime writes a custom point. A zero timestamp means now.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	if ts.IsZero() {
		ts = c.now()
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
