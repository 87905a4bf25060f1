package mqttdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
)

// ApplyChannels publishes the applied values to the driver's output topic.
// The values count as applied once the broker accepted the message.
func (b *Bridge) ApplyChannels(_ context.Context, id dsuid.DSUID, values map[device.ChannelType]float64) error {
	msg := OutputMessage{
		Timestamp: time.Now().UTC(),
		Channels:  make(map[string]float64, len(values)),
	}
	for t, v := range values {
		msg.Channels[t.String()] = v
	}
	if err := b.send(b.topics.DriverOutput(id.String()), msg); err != nil {
		return err
	}
	b.stats.outputs.Add(1)
	return nil
}

// Identify publishes an identify request.
func (b *Bridge) Identify(_ context.Context, id dsuid.DSUID) error {
	return b.send(b.topics.DriverIdentify(id.String()), IdentifyMessage{Timestamp: time.Now().UTC()})
}

// SetControlValue publishes a named control value.
func (b *Bridge) SetControlValue(_ context.Context, id dsuid.DSUID, name string, value float64) error {
	return b.send(b.topics.DriverControl(id.String(), name), ControlMessage{Timestamp: time.Now().UTC(), Value: value})
}

// CallMethod publishes a method request and waits for the driver's answer
// on the response topic, up to the method timeout or ctx.
func (b *Bridge) CallMethod(ctx context.Context, id dsuid.DSUID, name string, params []*property.Element) ([]*property.Element, error) {
	if b.stopped.Load() {
		return nil, ErrStopped
	}
	b.stats.methodCalls.Add(1)

	req := MethodRequest{
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
	if len(params) > 0 {
		req.Params = property.ToMap(params)
	}

	ch := make(chan MethodResponse, 1)
	b.pendingMu.Lock()
	b.pending[req.RequestID] = ch
	b.pendingMu.Unlock()
	defer b.forget(req.RequestID)
	if b.stopped.Load() {
		return nil, ErrStopped
	}

	if err := b.send(b.topics.DriverMethod(id.String(), name), req); err != nil {
		b.stats.methodsFailed.Add(1)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.methodTimeout)
	defer cancel()

	select {
	case resp, ok := <-ch:
		if !ok {
			b.stats.methodsFailed.Add(1)
			return nil, ErrStopped
		}
		if resp.Error != "" {
			b.stats.methodsFailed.Add(1)
			return nil, fmt.Errorf("%w: %s: %s", ErrMethodFailed, name, resp.Error)
		}
		result, err := property.FromMap(resp.Result)
		if err != nil {
			b.stats.methodsFailed.Add(1)
			return nil, fmt.Errorf("%w: %s: %v", ErrMethodFailed, name, err)
		}
		return result, nil
	case <-ctx.Done():
		b.stats.methodsFailed.Add(1)
		return nil, fmt.Errorf("%w: %s on %s", ErrTimeout, name, id)
	}
}

// handleResponse hands a driver's answer to the waiting call, if any.
func (b *Bridge) handleResponse(topic string, payload []byte) error {
	t, ok := b.topics.ParseDriverTopic(topic)
	if !ok {
		return nil
	}

	b.pendingMu.Lock()
	ch, ok := b.pending[t.Key]
	delete(b.pending, t.Key)
	b.pendingMu.Unlock()
	if !ok {
		b.logger.Debug("unsolicited method response", "topic", topic)
		return nil
	}

	var resp MethodResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		resp = MethodResponse{Error: "malformed response: " + err.Error()}
	}
	ch <- resp
	return nil
}

func (b *Bridge) forget(requestID string) {
	b.pendingMu.Lock()
	delete(b.pending, requestID)
	b.pendingMu.Unlock()
}

func (b *Bridge) send(topic string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	if err := b.client.Publish(topic, payload, b.qos, false); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

var (
	_ device.Driver       = (*Bridge)(nil)
	_ device.MethodDriver = (*Bridge)(nil)
)
