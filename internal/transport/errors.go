package transport

import "errors"

// Domain errors for the transport package.
var (
	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize, on
	// either side. The stream cannot be resynchronised after it.
	ErrFrameTooLarge = errors.New("transport: frame too large")

	// ErrEmptyFrame is returned for a zero length prefix.
	ErrEmptyFrame = errors.New("transport: empty frame")

	// ErrClosed is returned by operations on a closed connection or server.
	ErrClosed = errors.New("transport: connection closed")
)
