package mqttdriver

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// defaultHealthInterval is used when HealthConfig.Interval is zero.
const defaultHealthInterval = 30 * time.Second

// HealthReporter periodically publishes the retained bridge health.
type HealthReporter struct {
	bridge    *Bridge
	version   string
	interval  time.Duration
	startTime time.Time
	now       func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// HealthConfig configures a HealthReporter.
type HealthConfig struct {
	Version  string
	Interval time.Duration
}

// NewHealthReporter creates a reporter for b. Call Start to begin.
func NewHealthReporter(b *Bridge, cfg HealthConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthReporter{
		bridge:    b,
		version:   cfg.Version,
		interval:  interval,
		startTime: time.Now(),
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start publishes "starting" and then the current status every interval.
func (h *HealthReporter) Start(ctx context.Context) {
	if err := h.publish(HealthStarting, "bridge starting"); err != nil {
		h.bridge.logger.Debug("failed to publish starting status", "error", err)
	}
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		//nolint:errcheck // Best-effort during shutdown
		h.publish(HealthStopping, "")
	})
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.bridge.logger.Warn("failed to publish bridge health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.bridge.logger.Warn("failed to publish bridge health", "error", err)
			}
		}
	}
}

// determineStatus degrades when the broker is gone or events are being
// dropped.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if !h.bridge.client.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if len(h.bridge.events) == cap(h.bridge.events) {
		return HealthDegraded, "event queue full"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	now := h.now()
	msg := HealthMessage{
		Timestamp:     now.UTC(),
		Status:        status,
		Reason:        reason,
		Version:       h.version,
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		Statistics:    h.bridge.GetMetrics(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.bridge.client.Publish(h.bridge.topics.BridgeHealth(), payload, 1, true)
}
