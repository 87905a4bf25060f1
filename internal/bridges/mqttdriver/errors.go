package mqttdriver

import "errors"

// Domain errors for the MQTT driver bridge.
var (
	// ErrInvalidInput is returned for a driver report that cannot be applied.
	ErrInvalidInput = errors.New("mqttdriver: invalid input")

	// ErrTimeout is returned when a driver does not answer a method call in time.
	ErrTimeout = errors.New("mqttdriver: method call timed out")

	// ErrMethodFailed wraps an error reported by the driver.
	ErrMethodFailed = errors.New("mqttdriver: method failed")

	// ErrStopped is returned for calls after Stop.
	ErrStopped = errors.New("mqttdriver: bridge stopped")
)
