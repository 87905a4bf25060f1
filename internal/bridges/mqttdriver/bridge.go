package mqttdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/vdc-core/internal/vdc"
)

const (
	// inputTimeout bounds the host call made for one driver report.
	inputTimeout = 5 * time.Second

	// defaultMethodTimeout is how long a method call waits for the driver.
	defaultMethodTimeout = 10 * time.Second

	// eventQueueSize is the number of host events buffered for publishing.
	eventQueueSize = 256
)

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Host receives driver reports. *vdc.Host implements it.
type Host interface {
	UpdateChannelValue(ctx context.Context, id dsuid.DSUID, index int, value float64) error
	UpdateSensorValue(ctx context.Context, id dsuid.DSUID, index int, value float64) error
	UpdateBinaryInput(ctx context.Context, id dsuid.DSUID, index int, value bool) error
	ButtonClick(ctx context.Context, id dsuid.DSUID, index int, click device.ClickType) error
}

// Logger is the logging interface used by the bridge.
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

// Options configures a Bridge.
type Options struct {
	Client MQTTClient
	Topics mqtt.Topics
	QoS    byte
	Host   Host
	Logger Logger

	// MethodTimeout bounds generic method calls. Default 10s.
	MethodTimeout time.Duration

	// EventKinds limits the mirrored host events. Empty mirrors all.
	EventKinds []string
}

// Bridge translates between MQTT drivers and the vDC host.
//
// It is the device.Driver and device.MethodDriver of the registry and a
// vdc.EventSink of the host.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	client        MQTTClient
	topics        mqtt.Topics
	qos           byte
	host          Host
	logger        Logger
	methodTimeout time.Duration
	eventKinds    map[string]bool

	pending   map[string]chan MethodResponse
	pendingMu sync.Mutex

	events   chan vdc.Event
	started  atomic.Bool
	stopped  atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	stats counters
}

// counters are the bridge statistics.
type counters struct {
	inputs        atomic.Uint64
	inputsFailed  atomic.Uint64
	outputs       atomic.Uint64
	methodCalls   atomic.Uint64
	methodsFailed atomic.Uint64
	events        atomic.Uint64
	eventsDropped atomic.Uint64
}

// Metrics is a snapshot of the bridge statistics.
type Metrics struct {
	InputsReceived   uint64 `json:"inputs_received"`
	InputsRejected   uint64 `json:"inputs_rejected"`
	OutputsSent      uint64 `json:"outputs_sent"`
	MethodCalls      uint64 `json:"method_calls"`
	MethodsFailed    uint64 `json:"methods_failed"`
	EventsPublished  uint64 `json:"events_published"`
	EventsDropped    uint64 `json:"events_dropped"`
	PendingResponses int    `json:"pending_responses"`
}

// NewBridge creates a bridge. Call Start to subscribe.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Host == nil {
		return nil, fmt.Errorf("host is required")
	}

	b := &Bridge{
		client:        opts.Client,
		topics:        opts.Topics,
		qos:           opts.QoS,
		host:          opts.Host,
		logger:        opts.Logger,
		methodTimeout: opts.MethodTimeout,
		pending:       make(map[string]chan MethodResponse),
		events:        make(chan vdc.Event, eventQueueSize),
		done:          make(chan struct{}),
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	if b.methodTimeout <= 0 {
		b.methodTimeout = defaultMethodTimeout
	}
	if len(opts.EventKinds) > 0 {
		b.eventKinds = make(map[string]bool, len(opts.EventKinds))
		for _, k := range opts.EventKinds {
			b.eventKinds[k] = true
		}
	}
	return b, nil
}

// Start subscribes to driver reports and method responses and starts the
// event publisher.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.client.Subscribe(b.topics.AllDriverInputs(), b.qos, b.handleInput); err != nil {
		return fmt.Errorf("subscribe to driver inputs: %w", err)
	}
	if err := b.client.Subscribe(b.topics.AllMethodResponses(), b.qos, b.handleResponse); err != nil {
		return fmt.Errorf("subscribe to method responses: %w", err)
	}

	b.wg.Add(1)
	go b.publishLoop(ctx)
	b.started.Store(true)

	b.logger.Info("driver bridge started", "inputs", b.topics.AllDriverInputs())
	return nil
}

// Stop unsubscribes, fails pending method calls and waits for the event
// publisher. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		close(b.done)

		if b.started.Load() {
			for _, topic := range []string{b.topics.AllDriverInputs(), b.topics.AllMethodResponses()} {
				if err := b.client.Unsubscribe(topic); err != nil {
					b.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
				}
			}
		}

		b.pendingMu.Lock()
		for id, ch := range b.pending {
			close(ch)
			delete(b.pending, id)
		}
		b.pendingMu.Unlock()

		b.wg.Wait()
		b.logger.Info("driver bridge stopped")
	})
}

// Publish implements vdc.EventSink. It never blocks; events beyond the
// queue size are dropped.
func (b *Bridge) Publish(e vdc.Event) {
	if b.eventKinds != nil && !b.eventKinds[e.Kind] {
		return
	}
	if b.stopped.Load() {
		return
	}
	select {
	case b.events <- e:
	default:
		b.stats.eventsDropped.Add(1)
	}
}

func (b *Bridge) publishLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case e := <-b.events:
			b.publishEvent(e)
		}
	}
}

func (b *Bridge) publishEvent(e vdc.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.logger.Error("failed to marshal event", "kind", e.Kind, "error", err)
		return
	}
	if err := b.client.Publish(b.topics.Event(e.Kind), payload, b.qos, false); err != nil {
		b.stats.eventsDropped.Add(1)
		b.logger.Debug("event publish failed", "kind", e.Kind, "error", err)
		return
	}
	b.stats.events.Add(1)
}

// handleInput applies one driver report. Errors are logged and counted;
// a bad report never stops the subscription.
//
// The input filter also matches the bridge's own control and method
// topics and the response topics; those are skipped here.
func (b *Bridge) handleInput(topic string, payload []byte) error {
	t, ok := b.topics.ParseDriverTopic(topic)
	if !ok || !isInputKind(t.Kind) {
		return nil
	}
	b.stats.inputs.Add(1)

	if err := b.applyInput(t, payload); err != nil {
		b.stats.inputsFailed.Add(1)
		b.logger.Warn("driver report rejected", "topic", topic, "error", err)
	}
	return nil
}

func (b *Bridge) applyInput(t mqtt.DriverTopic, payload []byte) error {
	id, err := dsuid.Parse(t.DSUID)
	if err != nil {
		return fmt.Errorf("%w: dSUID %q", ErrInvalidInput, t.DSUID)
	}
	index, err := strconv.Atoi(t.Key)
	if err != nil || index < 0 {
		return fmt.Errorf("%w: index %q", ErrInvalidInput, t.Key)
	}
	var msg InputMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(msg.Value) == 0 {
		return fmt.Errorf("%w: missing value", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(context.Background(), inputTimeout)
	defer cancel()

	switch t.Kind {
	case mqtt.InputChannel:
		v, err := number(msg.Value)
		if err != nil {
			return err
		}
		return b.host.UpdateChannelValue(ctx, id, index, v)
	case mqtt.InputSensor:
		v, err := number(msg.Value)
		if err != nil {
			return err
		}
		return b.host.UpdateSensorValue(ctx, id, index, v)
	case mqtt.InputBinary:
		v, err := boolean(msg.Value)
		if err != nil {
			return err
		}
		return b.host.UpdateBinaryInput(ctx, id, index, v)
	case mqtt.InputButton:
		v, err := number(msg.Value)
		if err != nil {
			return err
		}
		return b.host.ButtonClick(ctx, id, index, device.ClickType(v))
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidInput, t.Kind)
	}
}

func isInputKind(kind string) bool {
	switch kind {
	case mqtt.InputChannel, mqtt.InputSensor, mqtt.InputBinary, mqtt.InputButton:
		return true
	}
	return false
}

func number(raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: value %s is not a number", ErrInvalidInput, raw)
	}
	return v, nil
}

func boolean(raw json.RawMessage) (bool, error) {
	var v bool
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, nil
	}
	f, err := number(raw)
	if err != nil {
		return false, fmt.Errorf("%w: value %s is not a bool", ErrInvalidInput, raw)
	}
	return f != 0, nil
}

// GetMetrics returns the current bridge statistics.
func (b *Bridge) GetMetrics() Metrics {
	b.pendingMu.Lock()
	pending := len(b.pending)
	b.pendingMu.Unlock()

	return Metrics{
		InputsReceived:   b.stats.inputs.Load(),
		InputsRejected:   b.stats.inputsFailed.Load(),
		OutputsSent:      b.stats.outputs.Load(),
		MethodCalls:      b.stats.methodCalls.Load(),
		MethodsFailed:    b.stats.methodsFailed.Load(),
		EventsPublished:  b.stats.events.Load(),
		EventsDropped:    b.stats.eventsDropped.Load(),
		PendingResponses: pending,
	}
}
