package main

import (
	"time"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/vdc"
)

// pointWriter is the part of *influxdb.Client the event sink writes to.
type pointWriter interface {
	WriteVdsdValue(dsuid, kind string, index int, value float64, source string, ts time.Time)
	WriteSessionState(vdsm string, active bool, ts time.Time)
	WritePush(dsuid string, properties int, ts time.Time)
	WriteNotification(dsuid, msgType string, ok bool, ts time.Time)
}

// influxSink turns host events into time-series points. The influx client
// batches writes, so Publish does not block.
type influxSink struct {
	w pointWriter
}

func newInfluxSink(w pointWriter) *influxSink {
	return &influxSink{w: w}
}

// Publish implements vdc.EventSink.
func (s *influxSink) Publish(e vdc.Event) {
	switch e.Kind {
	case vdc.EventValue:
		kind, _ := e.Data["kind"].(string)
		index, _ := e.Data["index"].(int)
		value, ok := e.Data["value"].(float64)
		if !ok {
			return
		}
		s.w.WriteVdsdValue(e.DSUID, kind, index, value, device.HistorySourceDriver, e.Time)
	case vdc.EventSession:
		state, _ := e.Data["state"].(string)
		vdsm, _ := e.Data["vdsm"].(string)
		s.w.WriteSessionState(vdsm, state == "active", e.Time)
	case vdc.EventPush:
		s.w.WritePush(e.DSUID, len(e.Data), e.Time)
	case vdc.EventNotification, vdc.EventNotificationFailed:
		msgType, _ := e.Data["type"].(string)
		s.w.WriteNotification(e.DSUID, msgType, e.Kind == vdc.EventNotification, e.Time)
	}
}
