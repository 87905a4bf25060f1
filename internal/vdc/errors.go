package vdc

import "errors"

// Domain errors for the vdc package.
var (
	// ErrVdcExists is returned when adding a vDC whose dSUID is already registered.
	ErrVdcExists = errors.New("vdc: vDC already registered")

	// ErrVdcNotFound is returned when a device names an unknown vDC.
	ErrVdcNotFound = errors.New("vdc: vDC not found")

	// ErrNoSession is returned when sending while no vdSM session is active.
	ErrNoSession = errors.New("vdc: no active session")

	// ErrInvalidConfig is returned when a host or vDC cannot be created.
	ErrInvalidConfig = errors.New("vdc: invalid configuration")
)
