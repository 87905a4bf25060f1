package vdc

import "time"

// Event kinds published to event sinks.
const (
	EventSession            = "session"
	EventAnnounce           = "announce"
	EventVanish             = "vanish"
	EventRemove             = "remove"
	EventPush               = "push"
	EventValue              = "value"
	EventNotification       = "notification"
	EventNotificationFailed = "notification_failed"
)

// Event is a host-side occurrence mirrored to observers such as the
// websocket hub and the MQTT event topic.
type Event struct {
	Kind  string         `json:"kind"`
	DSUID string         `json:"dsuid,omitempty"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// EventSink receives host events. Publish must not block.
type EventSink interface {
	Publish(e Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(e Event)

// Publish calls f(e).
func (f EventSinkFunc) Publish(e Event) { f(e) }

// Metrics receives host counters. The infrastructure/metrics package
// provides the Prometheus implementation.
type Metrics interface {
	ObserveRequest(msgType, result string, d time.Duration)
	ObserveNotification(msgType string, targets, failed int)
	ObserveAnnounce(kind string, ok bool)
	ObservePush()
	SetSessionActive(active bool)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, string, time.Duration) {}
func (noopMetrics) ObserveNotification(string, int, int)         {}
func (noopMetrics) ObserveAnnounce(string, bool)                 {}
func (noopMetrics) ObservePush()                                 {}
func (noopMetrics) SetSessionActive(bool)                        {}

// Logger defines the logging interface used by the host.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
