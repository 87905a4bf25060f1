package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/vdcapi"
)

// Defaults for Config fields left at zero.
const (
	DefaultMinAPIVersion  = 2
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxInFlight    = 8
	DefaultQueueSize      = 64
)

// State is the session lifecycle state.
type State int32

// Session states.
const (
	StateAwaitingHello State = iota
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingHello:
		return "awaiting_hello"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Transport is the framed connection a session runs on.
// *transport.Conn implements it.
type Transport interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
	Close() error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Handler is the host side of a session.
type Handler interface {
	// HostDSUID is sent in ResponseHello. Vanishing it ends the session.
	HostDSUID() dsuid.DSUID

	// Responds reports whether a ping to id should be answered.
	Responds(id dsuid.DSUID) bool

	// SessionActive runs in its own goroutine after every accepted hello.
	SessionActive(ctx context.Context, s *Session)

	// SessionEnded runs once when the session terminates.
	SessionEnded(s *Session)

	// HandleRequest answers get, set, generic and remove requests. A nil
	// payload with a nil error is answered with ERR_OK.
	HandleRequest(ctx context.Context, s *Session, env vdcapi.Envelope) (vdcapi.Payload, error)

	// HandleNotification processes a vdSM notification. Calls arrive in
	// wire order.
	HandleNotification(ctx context.Context, s *Session, env vdcapi.Envelope)
}

// Config tunes a Session.
type Config struct {
	// MinAPIVersion is the lowest hello api_version accepted. Default: 2.
	MinAPIVersion uint32

	// RequestTimeout applies to Request calls whose context has no
	// deadline. Default: 30 seconds.
	RequestTimeout time.Duration

	// MaxInFlight is the number of concurrent request workers. Default: 8.
	MaxInFlight int

	// QueueSize bounds waiting requests and notifications. Default: 64.
	QueueSize int
}

// Stats holds session counters.
type Stats struct {
	State                State
	VdsmDSUID            dsuid.DSUID
	APIVersion           uint32
	StartedAt            time.Time
	PingsTotal           uint64
	RequestsHandled      uint64
	RequestsRejected     uint64
	NotificationsHandled uint64
	NotificationsDropped uint64
	RequestsSent         uint64
	LateResponses        uint64
	DecodeErrors         uint64
}

// Session is one vdSM session.
//
// Thread Safety:
//   - Request, Notify, State, Stats and Close are safe for concurrent use.
//   - Run must be called exactly once.
type Session struct {
	cfg     Config
	conn    Transport
	handler Handler
	logger  Logger

	state atomic.Int32

	infoMu     sync.RWMutex
	vdsm       dsuid.DSUID
	apiVersion uint32

	nextID    atomic.Uint32
	pendingMu sync.Mutex
	pending   map[uint32]chan vdcapi.Envelope

	requests      chan vdcapi.Envelope
	notifications chan vdcapi.Envelope

	ctx       context.Context
	cancel    context.CancelFunc
	endOnce   sync.Once
	runErr    error
	hookWG    sync.WaitGroup
	startedAt time.Time

	pings                atomic.Uint64
	requestsHandled      atomic.Uint64
	requestsRejected     atomic.Uint64
	notificationsHandled atomic.Uint64
	notificationsDropped atomic.Uint64
	requestsSent         atomic.Uint64
	lateResponses        atomic.Uint64
	decodeErrors         atomic.Uint64
}

// New creates a session on conn. Call Run to start it.
func New(conn Transport, handler Handler, cfg Config, logger Logger) *Session {
	if cfg.MinAPIVersion == 0 {
		cfg.MinAPIVersion = DefaultMinAPIVersion
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Session{
		cfg:           cfg,
		conn:          conn,
		handler:       handler,
		logger:        logger,
		pending:       make(map[uint32]chan vdcapi.Envelope),
		requests:      make(chan vdcapi.Envelope, cfg.QueueSize),
		notifications: make(chan vdcapi.Envelope, cfg.QueueSize),
		startedAt:     time.Now(),
	}
}

// Run serves the session until it terminates.
//
// Returns:
//   - nil: The vdSM said bye or the host vanished
//   - error: ctx cancellation, a transport failure, an incompatible hello or
//     an undecodable frame before hello
func (s *Session) Run(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	var workers sync.WaitGroup
	for range s.cfg.MaxInFlight {
		workers.Add(1)
		go s.requestWorker(&workers)
	}
	workers.Add(1)
	go s.notificationWorker(&workers)

	err := s.readLoop()
	s.terminate(err)

	workers.Wait()
	s.hookWG.Wait()
	return s.runErr
}

func (s *Session) readLoop() error {
	for {
		frame, err := s.conn.ReadFrame(s.ctx)
		if err != nil {
			if s.State() == StateTerminated {
				return nil
			}
			return err
		}

		env, err := vdcapi.Decode(frame)
		if err != nil {
			s.decodeErrors.Add(1)
			if s.State() == StateAwaitingHello {
				return fmt.Errorf("before hello: %w", err)
			}
			s.logWarn("undecodable message", "error", err)
			var de *vdcapi.DecodeError
			if errors.As(err, &de) && de.MessageID != 0 {
				s.respond(de.MessageID, vdcapi.Response(err))
			}
			continue
		}

		if done, err := s.dispatch(env); done {
			return err
		}
	}
}

// dispatch routes one envelope. It reports done when the session must end.
func (s *Session) dispatch(env vdcapi.Envelope) (bool, error) {
	switch p := env.Payload.(type) {
	case *vdcapi.GenericResponse:
		s.resolve(env)
		return false, nil
	case *vdcapi.RequestHello:
		return s.handleHello(env.MessageID, p)
	}

	if s.State() != StateActive {
		s.logDebug("message before hello", "type", env.Type())
		if env.MessageID != 0 {
			s.respond(env.MessageID, vdcapi.Response(vdcapi.ErrServiceNotAvailable))
		}
		return false, nil
	}

	switch p := env.Payload.(type) {
	case *vdcapi.SendPing:
		s.pings.Add(1)
		if s.handler.Responds(p.DSUID) {
			s.send(vdcapi.Envelope{Payload: &vdcapi.SendPong{DSUID: p.DSUID}})
		}
		return false, nil

	case *vdcapi.SendBye:
		s.respond(env.MessageID, vdcapi.Response(nil))
		s.logInfo("vdSM said bye")
		return true, nil

	case *vdcapi.RequestGetProperty, *vdcapi.RequestSetProperty,
		*vdcapi.RequestGenericRequest, *vdcapi.SendRemove:
		select {
		case s.requests <- env:
		default:
			s.requestsRejected.Add(1)
			s.logWarn("request queue full, rejecting", "type", env.Type(), "id", env.MessageID)
			s.respond(env.MessageID, vdcapi.Response(fmt.Errorf("%w: %w", vdcapi.ErrServiceNotAvailable, ErrQueueFull)))
		}
		return false, nil
	}

	if env.Type().IsNotification() {
		select {
		case s.notifications <- env:
		default:
			s.notificationsDropped.Add(1)
			s.logWarn("notification queue full, dropping", "type", env.Type())
		}
		return false, nil
	}

	// vDC-originated types arriving from the vdSM.
	s.logDebug("unexpected message from vdSM", "type", env.Type())
	if env.MessageID != 0 {
		s.respond(env.MessageID, vdcapi.Response(vdcapi.ErrMessageUnknown))
	}
	return false, nil
}

func (s *Session) handleHello(id uint32, hello *vdcapi.RequestHello) (bool, error) {
	if hello.APIVersion < s.cfg.MinAPIVersion {
		err := fmt.Errorf("%w: vdSM offers %d, need %d",
			vdcapi.ErrIncompatibleAPI, hello.APIVersion, s.cfg.MinAPIVersion)
		s.respond(id, vdcapi.Response(err))
		return true, err
	}

	s.infoMu.Lock()
	s.vdsm = hello.DSUID
	s.apiVersion = hello.APIVersion
	s.infoMu.Unlock()

	if !s.setState(StateActive) {
		return true, nil
	}
	s.respond(id, &vdcapi.ResponseHello{DSUID: s.handler.HostDSUID()})
	s.logInfo("session active", "vdsm", hello.DSUID, "api_version", hello.APIVersion)

	s.hookWG.Add(1)
	go func() {
		defer s.hookWG.Done()
		s.handler.SessionActive(s.ctx, s)
	}()
	return false, nil
}

func (s *Session) requestWorker(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.requests:
			resp, err := s.handler.HandleRequest(s.ctx, s, env)
			if err != nil {
				s.logDebug("request failed", "type", env.Type(), "id", env.MessageID, "error", err)
				resp = vdcapi.Response(err)
			} else if resp == nil {
				resp = vdcapi.Response(nil)
			}
			s.requestsHandled.Add(1)
			s.respond(env.MessageID, resp)
		}
	}
}

func (s *Session) notificationWorker(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.notifications:
			s.handler.HandleNotification(s.ctx, s, env)
			s.notificationsHandled.Add(1)
		}
	}
}

// Request sends a vDC-originated request and waits for its response.
//
// Returns:
//   - *vdcapi.GenericResponse: The response, also returned with a non-OK code
//   - error: *vdcapi.ResultError for a non-OK code, ErrTimeout,
//     ErrTerminated or ErrNotActive
func (s *Session) Request(ctx context.Context, p vdcapi.Payload) (*vdcapi.GenericResponse, error) {
	if s.State() != StateActive {
		return nil, ErrNotActive
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	id := s.allocID()
	ch := make(chan vdcapi.Envelope, 1)
	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	defer s.forget(id)

	if err := s.write(ctx, vdcapi.Envelope{MessageID: id, Payload: p}); err != nil {
		return nil, err
	}
	s.requestsSent.Add(1)

	select {
	case env := <-ch:
		resp, ok := env.Payload.(*vdcapi.GenericResponse)
		if !ok {
			return nil, fmt.Errorf("%w: response to %s is %s", vdcapi.ErrPayloadMismatch, p.Type(), env.Type())
		}
		if resp.Code != vdcapi.ErrOK {
			return resp, &vdcapi.ResultError{Code: resp.Code, Description: resp.Description}
		}
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s id %d: %w", ErrTimeout, p.Type(), id, ctx.Err())
	case <-s.done():
		return nil, ErrTerminated
	}
}

// Notify sends p with message ID 0. Vanishing the host's own dSUID ends
// the session after the message is written.
func (s *Session) Notify(ctx context.Context, p vdcapi.Payload) error {
	if s.State() != StateActive {
		return ErrNotActive
	}
	if err := s.write(ctx, vdcapi.Envelope{Payload: p}); err != nil {
		return err
	}
	if v, ok := p.(*vdcapi.SendVanish); ok && v.DSUID == s.handler.HostDSUID() {
		s.logInfo("host vanished, ending session")
		s.terminate(nil)
	}
	return nil
}

// Close ends the session. Run returns shortly after.
func (s *Session) Close() {
	s.terminate(nil)
}

func (s *Session) allocID() uint32 {
	for {
		if id := s.nextID.Add(1); id != 0 {
			return id
		}
	}
}

func (s *Session) forget(id uint32) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

func (s *Session) resolve(env vdcapi.Envelope) {
	s.pendingMu.Lock()
	ch, ok := s.pending[env.MessageID]
	delete(s.pending, env.MessageID)
	s.pendingMu.Unlock()

	if !ok {
		s.lateResponses.Add(1)
		s.logDebug("dropping response without pending request", "id", env.MessageID)
		return
	}
	ch <- env
}

func (s *Session) respond(id uint32, p vdcapi.Payload) {
	s.send(vdcapi.Envelope{MessageID: id, Payload: p})
}

// send writes from the session's own goroutines; failures are logged.
func (s *Session) send(env vdcapi.Envelope) {
	if err := s.write(s.ctx, env); err != nil {
		s.logWarn("send failed", "type", env.Type(), "id", env.MessageID, "error", err)
	}
}

func (s *Session) write(ctx context.Context, env vdcapi.Envelope) error {
	b, err := vdcapi.Encode(env)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", env.Type(), err)
	}
	if err := s.conn.WriteFrame(ctx, b); err != nil {
		return fmt.Errorf("writing %s: %w", env.Type(), err)
	}
	return nil
}

func (s *Session) setState(to State) bool {
	for {
		cur := State(s.state.Load())
		if cur == StateTerminated {
			return false
		}
		if s.state.CompareAndSwap(int32(cur), int32(to)) {
			return true
		}
	}
}

func (s *Session) terminate(err error) {
	s.endOnce.Do(func() {
		prev := State(s.state.Swap(int32(StateTerminated)))
		s.runErr = err
		if s.cancel != nil {
			s.cancel()
		}
		s.conn.Close() //nolint:errcheck,gosec // session is over
		s.logInfo("session terminated", "previous_state", prev, "error", err)
		s.handler.SessionEnded(s)
	})
}

func (s *Session) done() <-chan struct{} {
	return s.ctx.Done()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// VdsmDSUID returns the dSUID the vdSM sent in its hello.
func (s *Session) VdsmDSUID() dsuid.DSUID {
	s.infoMu.RLock()
	defer s.infoMu.RUnlock()
	return s.vdsm
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.infoMu.RLock()
	vdsm, api := s.vdsm, s.apiVersion
	s.infoMu.RUnlock()

	return Stats{
		State:                s.State(),
		VdsmDSUID:            vdsm,
		APIVersion:           api,
		StartedAt:            s.startedAt,
		PingsTotal:           s.pings.Load(),
		RequestsHandled:      s.requestsHandled.Load(),
		RequestsRejected:     s.requestsRejected.Load(),
		NotificationsHandled: s.notificationsHandled.Load(),
		NotificationsDropped: s.notificationsDropped.Load(),
		RequestsSent:         s.requestsSent.Load(),
		LateResponses:        s.lateResponses.Load(),
		DecodeErrors:         s.decodeErrors.Load(),
	}
}

func (s *Session) logDebug(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, kv...)
	}
}

func (s *Session) logInfo(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Info(msg, kv...)
	}
}

func (s *Session) logWarn(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, kv...)
	}
}
