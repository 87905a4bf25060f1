package mqttdriver

import (
	"encoding/json"
	"time"
)

// InputMessage is a value report from a driver.
type InputMessage struct {
	// Value is a number for channels, sensors and buttons, and a bool or
	// number for binary inputs.
	Value json.RawMessage `json:"value"`
}

// OutputMessage carries applied channel values to a driver.
// Keys are channel names, e.g. "brightness".
type OutputMessage struct {
	Timestamp time.Time          `json:"timestamp"`
	Channels  map[string]float64 `json:"channels"`
}

// IdentifyMessage asks a driver to make the device signal itself.
type IdentifyMessage struct {
	Timestamp time.Time `json:"timestamp"`
}

// ControlMessage forwards a named control value.
type ControlMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MethodRequest is a generic method call. The driver answers on the
// response topic named by RequestID.
type MethodRequest struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Params    map[string]any `json:"params,omitempty"`
}

// MethodResponse is a driver's answer to a MethodRequest. A non-empty
// Error fails the call.
type MethodResponse struct {
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained bridge health report.
type HealthMessage struct {
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Statistics    Metrics      `json:"statistics"`
}
