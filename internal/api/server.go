// Package api provides the HTTP status API and event stream of the vDC host.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/vdc-core/internal/audit"
	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/infrastructure/config"
	"github.com/nerrad567/vdc-core/internal/infrastructure/logging"
	"github.com/nerrad567/vdc-core/internal/vdc"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by every infrastructure client reported on
// by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PoolStatser reports database connection pool statistics.
type PoolStatser interface {
	Stats() sql.DBStats
}

// ConnectionReporter reports whether a broker connection is up.
type ConnectionReporter interface {
	IsConnected() bool
}

// RequestObserver counts status API requests. *metrics.Metrics
// implements it.
type RequestObserver interface {
	ObserveHTTP(route string, status int)
}

// AuditLister pages through the audit log.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// HistoryReader returns the recorded value changes of a vdSD.
type HistoryReader interface {
	GetHistory(ctx context.Context, id string, limit int) ([]device.StateHistoryEntry, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Host    *vdc.Host
	Version string

	// Metrics is served on /metrics when set.
	Metrics http.Handler

	// Requests counts served requests by route pattern when set.
	Requests RequestObserver

	// Checks are run by the health endpoint, keyed by component name.
	Checks map[string]HealthChecker

	// Optional sources for the system endpoint.
	DB   PoolStatser
	MQTT ConnectionReporter

	// Optional stores; their routes answer 503 when unset.
	Audit   AuditLister
	History HistoryReader
}

// Server is the HTTP status server of the vDC host.
//
// The event stream hub exists from New on, so it can be registered as an
// event sink before the listener starts.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	host      *vdc.Host
	version   string
	metrics   http.Handler
	checks    map[string]HealthChecker
	db        PoolStatser
	mqtt      ConnectionReporter
	audit     AuditLister
	history   HistoryReader
	requests  RequestObserver
	hub       *Hub
	server    *http.Server
	startTime time.Time
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Host == nil {
		return nil, fmt.Errorf("vdc host is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		host:      deps.Host,
		version:   deps.Version,
		metrics:   deps.Metrics,
		checks:    deps.Checks,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		audit:     deps.Audit,
		history:   deps.History,
		requests:  deps.Requests,
		hub:       NewHub(deps.Logger),
		startTime: time.Now(),
	}, nil
}

// Hub returns the event stream hub. It implements vdc.EventSink.
func (s *Server) Hub() *Hub { return s.hub }

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
