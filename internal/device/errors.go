package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a dSUID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when adding a device or vdSD whose dSUID is already registered.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when a device description cannot be built.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrAnnounced is returned when changing the structure of an announced device.
	ErrAnnounced = errors.New("device: already announced")

	// ErrNoOutput is returned for output operations on an input-only vdSD.
	ErrNoOutput = errors.New("device: no output")

	// ErrChannelNotFound is returned when a channel index or type is not present.
	ErrChannelNotFound = errors.New("device: channel not found")

	// ErrInputNotFound is returned when a button, binary input or sensor index is not present.
	ErrInputNotFound = errors.New("device: input not found")

	// ErrInvalidScene is returned for scene numbers outside 0..127.
	ErrInvalidScene = errors.New("device: invalid scene")

	// ErrInvalidRecord is returned when a persisted record cannot be decoded.
	ErrInvalidRecord = errors.New("device: invalid record")

	// ErrNotSupported is returned when the driver does not implement a generic method.
	ErrNotSupported = errors.New("device: not supported by driver")
)
