package vdc

import (
	"context"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/session"
	"github.com/nerrad567/vdc-core/internal/vdcapi"
)

// HandleNotification implements session.Handler. The notification is
// applied to each addressed vdSD on its own; a failing target is logged,
// counted and published but never stops the others.
func (h *Host) HandleNotification(ctx context.Context, _ *session.Session, env vdcapi.Envelope) {
	targets := vdcapi.Targets(env.Payload)
	kind := env.Type().String()

	failed := 0
	for _, id := range targets {
		if err := h.notifyTarget(ctx, id, env.Payload); err != nil {
			failed++
			h.logger.Warn("notification failed", "type", kind, "dsuid", id.String(), "error", err)
			h.publish(Event{Kind: EventNotificationFailed, DSUID: id.String(), Data: map[string]any{
				"type": kind, "error": err.Error(),
			}})
			continue
		}
		h.publish(Event{Kind: EventNotification, DSUID: id.String(), Data: map[string]any{"type": kind}})
	}
	h.metrics.ObserveNotification(kind, len(targets), failed)
}

func (h *Host) notifyTarget(ctx context.Context, id dsuid.DSUID, p vdcapi.Payload) error {
	v, err := h.registry.GetVdsd(id)
	if err != nil {
		return err
	}
	if f, ok := filterOf(p); ok && !matches(v, f) {
		return nil
	}

	switch m := p.(type) {
	case *vdcapi.NotificationCallScene:
		return v.CallScene(ctx, int(m.Scene), m.Force)
	case *vdcapi.NotificationSaveScene:
		if err := v.SaveScene(int(m.Scene)); err != nil {
			return err
		}
		return h.registry.Save(ctx, v)
	case *vdcapi.NotificationUndoScene:
		return v.UndoScene(ctx, int(m.Scene))
	case *vdcapi.NotificationSetLocalPrio:
		return v.SetLocalPriority(int(m.Scene))
	case *vdcapi.NotificationCallMinScene:
		return v.CallMinScene(ctx, int(m.Scene))
	case *vdcapi.NotificationIdentify:
		return v.Identify(ctx)
	case *vdcapi.NotificationSetControlValue:
		return v.SetControlValue(ctx, m.Name, m.Value)
	case *vdcapi.NotificationDimChannel:
		t, err := v.ResolveChannel(int(m.Channel), m.ChannelID)
		if err != nil {
			return err
		}
		return v.DimChannel(ctx, t, int(m.Mode), int(m.Area))
	case *vdcapi.NotificationSetOutputChannelValue:
		t, err := v.ResolveChannel(int(m.Channel), m.ChannelID)
		if err != nil {
			return err
		}
		return v.SetChannelValue(ctx, t, m.Value, m.ApplyNow)
	}
	return vdcapi.ErrMessageUnknown
}

func filterOf(p vdcapi.Payload) (vdcapi.Filter, bool) {
	switch m := p.(type) {
	case *vdcapi.NotificationCallScene:
		return m.Filter, true
	case *vdcapi.NotificationSaveScene:
		return m.Filter, true
	case *vdcapi.NotificationUndoScene:
		return m.Filter, true
	case *vdcapi.NotificationSetLocalPrio:
		return m.Filter, true
	case *vdcapi.NotificationCallMinScene:
		return m.Filter, true
	case *vdcapi.NotificationIdentify:
		return m.Filter, true
	case *vdcapi.NotificationSetControlValue:
		return m.Filter, true
	case *vdcapi.NotificationDimChannel:
		return m.Filter, true
	}
	return vdcapi.Filter{}, false
}

// matches applies the optional zone and group restriction. Zone 0 is the
// whole apartment and group 0 is broadcast.
func matches(v *device.Vdsd, f vdcapi.Filter) bool {
	if f.ZoneID != nil && *f.ZoneID != 0 && v.ZoneID() != int(*f.ZoneID) {
		return false
	}
	if f.Group != nil && *f.Group != 0 && !v.InGroup(int(*f.Group)) {
		return false
	}
	return true
}
