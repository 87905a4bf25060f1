package vdc

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
	"github.com/nerrad567/vdc-core/internal/vdcapi"
)

// Method answers a generic request addressed to target. A non-empty result
// is returned to the vdSM as a property response.
type Method func(ctx context.Context, target dsuid.DSUID, params []*property.Element) ([]*property.Element, error)

// HandleMethod registers m under name, replacing any earlier method.
// Registered methods take precedence over the vdSD's driver.
func (h *Host) HandleMethod(name string, m Method) {
	h.mu.Lock()
	h.methods[name] = m
	h.mu.Unlock()
}

// Methods returns the registered method names.
func (h *Host) Methods() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.methods))
	for n := range h.methods {
		names = append(names, n)
	}
	h.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (h *Host) method(name string) Method {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.methods[name]
}

func (h *Host) callMethod(ctx context.Context, req *vdcapi.RequestGenericRequest) (vdcapi.Payload, error) {
	if !h.store.Has(req.DSUID.String()) {
		return nil, fmt.Errorf("%w: %s", property.ErrNotFound, req.DSUID)
	}

	var (
		result []*property.Element
		err    error
	)
	if m := h.method(req.MethodName); m != nil {
		result, err = m(ctx, req.DSUID, req.Params)
	} else if v, vErr := h.registry.GetVdsd(req.DSUID); vErr == nil {
		result, err = v.CallMethod(ctx, req.MethodName, req.Params)
		if errors.Is(err, device.ErrNotSupported) {
			err = vdcapi.Errorf(vdcapi.ErrCodeNotImplemented, "method %q", req.MethodName)
		}
	} else {
		err = vdcapi.Errorf(vdcapi.ErrCodeNotImplemented, "method %q", req.MethodName)
	}
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		return &vdcapi.ResponseGetProperty{Properties: result}, nil
	}
	return nil, nil
}

func (h *Host) registerBuiltinMethods() {
	h.methods["identify"] = h.identifyMethod
	h.methods["logMessage"] = h.logMessageMethod
}

// identifyMethod makes a vdSD signal itself. On the host or a vDC it is
// accepted and logged.
func (h *Host) identifyMethod(ctx context.Context, target dsuid.DSUID, _ []*property.Element) ([]*property.Element, error) {
	v, err := h.registry.GetVdsd(target)
	if err != nil {
		h.logger.Info("identify requested", "dsuid", target.String())
		return nil, nil
	}
	return nil, v.Identify(ctx)
}

// logMessageMethod writes the "message" parameter to the host log.
func (h *Host) logMessageMethod(_ context.Context, target dsuid.DSUID, params []*property.Element) ([]*property.Element, error) {
	msg := property.Container("", params...).Child("message")
	if msg == nil || !msg.IsLeaf() {
		return nil, fmt.Errorf("%w: message", property.ErrMissingData)
	}
	h.logger.Info("vdSM message", "dsuid", target.String(), "message", msg.Value.AsString())
	return nil, nil
}
