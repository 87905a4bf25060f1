package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// DefaultPort is the vDC API's registered TCP port.
const DefaultPort = 8444

// ConnHandler serves one accepted connection. ServeConn returns when the
// session ends; ctx is cancelled when the connection is replaced or the
// server shuts down.
type ConnHandler interface {
	ServeConn(ctx context.Context, c *Conn)
}

// ConnHandlerFunc adapts a function to ConnHandler.
type ConnHandlerFunc func(ctx context.Context, c *Conn)

// ServeConn calls f(ctx, c).
func (f ConnHandlerFunc) ServeConn(ctx context.Context, c *Conn) { f(ctx, c) }

// ServerConfig holds listener configuration.
type ServerConfig struct {
	// Address is the listen address. Default: ":8444".
	Address string

	Conn ConnConfig
}

// ServerStats holds listener counters.
type ServerStats struct {
	Accepted   uint64
	Replaced   uint64
	Active     bool
	ActiveConn Stats
}

// Server accepts vdSM connections, one live session at a time.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Server struct {
	cfg     ServerConfig
	handler ConnHandler
	logger  Logger

	ln        net.Listener
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu           sync.Mutex
	active       *Conn
	activeCancel context.CancelFunc

	accepted atomic.Uint64
	replaced atomic.Uint64
}

// NewServer creates a server. Call Start to begin accepting.
func NewServer(cfg ServerConfig, handler ConnHandler, logger Logger) *Server {
	if cfg.Address == "" {
		cfg.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start opens the listener and accepts in the background.
// The server stops when ctx is cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}
	s.ln = ln

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	go func() {
		select {
		case <-ctx.Done():
			s.Close() //nolint:errcheck,gosec // shutdown path
		case <-s.done:
		}
	}()

	s.logInfo("vDC API listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logWarn("accept failed", "error", err)
			continue
		}
		s.accepted.Add(1)
		s.serve(ctx, NewConn(nc, s.cfg.Conn))
	}
}

// serve replaces any active session with c.
func (s *Server) serve(parent context.Context, c *Conn) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		cancel()
		c.Close() //nolint:errcheck,gosec // server is shutting down
		return
	}
	prev, prevCancel := s.active, s.activeCancel
	s.active, s.activeCancel = c, cancel
	s.mu.Unlock()

	if prev != nil {
		s.replaced.Add(1)
		s.logInfo("new vdSM connection replaces active session",
			"previous", prev.RemoteAddr(), "remote", c.RemoteAddr())
		prevCancel()
		prev.Close() //nolint:errcheck,gosec // replaced connection
	}

	s.logInfo("vdSM connected", "remote", c.RemoteAddr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer c.Close() //nolint:errcheck // connection is finished

		s.handler.ServeConn(ctx, c)

		s.mu.Lock()
		if s.active == c {
			s.active, s.activeCancel = nil, nil
		}
		s.mu.Unlock()
		s.logInfo("vdSM disconnected", "remote", c.RemoteAddr())
	}()
}

// Close stops accepting, ends the active session and waits for it.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.ln != nil {
			err = s.ln.Close()
		}

		s.mu.Lock()
		if s.active != nil {
			s.activeCancel()
			s.active.Close() //nolint:errcheck,gosec // shutdown path
		}
		s.mu.Unlock()

		s.wg.Wait()
	})
	return err
}

func (s *Server) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Stats returns listener counters and the active connection's stats.
func (s *Server) Stats() ServerStats {
	st := ServerStats{
		Accepted: s.accepted.Load(),
		Replaced: s.replaced.Load(),
	}
	s.mu.Lock()
	if s.active != nil {
		st.Active = true
		st.ActiveConn = s.active.Stats()
	}
	s.mu.Unlock()
	return st
}

func (s *Server) logInfo(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Info(msg, keysAndValues...)
	}
}

func (s *Server) logWarn(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, keysAndValues...)
	}
}
