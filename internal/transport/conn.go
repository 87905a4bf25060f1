package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// defaultWriteTimeout bounds a single frame write.
const defaultWriteTimeout = 5 * time.Second

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ConnConfig tunes a Conn.
type ConnConfig struct {
	// WriteTimeout bounds one frame write. Default: 5 seconds.
	WriteTimeout time.Duration

	// IdleTimeout closes the read side after this long without a frame.
	// Zero disables it; the vdSM's pings keep a healthy session busy.
	IdleTimeout time.Duration
}

// Stats holds per-connection counters.
type Stats struct {
	FramesRx     uint64
	FramesTx     uint64
	BytesRx      uint64
	BytesTx      uint64
	ErrorsTotal  uint64
	ConnectedAt  time.Time
	LastActivity time.Time
	RemoteAddr   string
}

// Conn is one framed vdSM connection.
//
// Thread Safety:
//   - WriteFrame is safe for concurrent use; frames never interleave.
//   - ReadFrame must be called from a single goroutine.
type Conn struct {
	cfg  ConnConfig
	conn net.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}

	connectedAt  time.Time
	framesRx     atomic.Uint64
	framesTx     atomic.Uint64
	bytesRx      atomic.Uint64
	bytesTx      atomic.Uint64
	errorsTotal  atomic.Uint64
	lastActivity atomic.Int64
}

// NewConn wraps c.
func NewConn(c net.Conn, cfg ConnConfig) *Conn {
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	now := time.Now()
	conn := &Conn{
		cfg:         cfg,
		conn:        c,
		closed:      make(chan struct{}),
		connectedAt: now,
	}
	conn.lastActivity.Store(now.UnixNano())
	return conn
}

// ReadFrame blocks until a frame arrives, ctx ends or the connection closes.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	deadline := time.Time{}
	if c.cfg.IdleTimeout > 0 {
		deadline = time.Now().Add(c.cfg.IdleTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	// Unblock the read when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now()) //nolint:errcheck // best effort wake-up
	})
	defer stop()

	payload, err := ReadFrame(c.conn)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if c.isClosed() || errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		c.errorsTotal.Add(1)
		return nil, err
	}

	c.framesRx.Add(1)
	c.bytesRx.Add(uint64(HeaderSize + len(payload)))
	c.lastActivity.Store(time.Now().UnixNano())
	return payload, nil
}

// WriteFrame sends payload as one frame.
func (c *Conn) WriteFrame(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	if err := WriteFrame(c.conn, payload); err != nil {
		if c.isClosed() {
			return ErrClosed
		}
		c.errorsTotal.Add(1)
		return fmt.Errorf("write frame: %w", err)
	}

	c.framesTx.Add(1)
	c.bytesTx.Add(uint64(HeaderSize + len(payload)))
	c.lastActivity.Store(time.Now().UnixNano())
	return nil
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	if a := c.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// Stats returns a snapshot of the connection counters.
func (c *Conn) Stats() Stats {
	return Stats{
		FramesRx:     c.framesRx.Load(),
		FramesTx:     c.framesTx.Load(),
		BytesRx:      c.bytesRx.Load(),
		BytesTx:      c.bytesTx.Load(),
		ErrorsTotal:  c.errorsTotal.Load(),
		ConnectedAt:  c.connectedAt,
		LastActivity: time.Unix(0, c.lastActivity.Load()),
		RemoteAddr:   c.RemoteAddr(),
	}
}
