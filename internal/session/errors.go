package session

import "errors"

// Domain errors for the session package.
var (
	// ErrNotActive is returned when sending before hello or after the
	// session ended.
	ErrNotActive = errors.New("session: not active")

	// ErrTerminated is returned to callers waiting on a session that ended.
	ErrTerminated = errors.New("session: terminated")

	// ErrTimeout is returned when a request gets no response in time.
	ErrTimeout = errors.New("session: request timed out")

	// ErrQueueFull is reported when a request arrives while the worker
	// queue is saturated.
	ErrQueueFull = errors.New("session: request queue full")
)
