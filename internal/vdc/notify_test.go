package vdc

import (
	"context"
	"testing"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/vdcapi"
)

func int32Ptr(v int32) *int32 { return &v }

func notify(h *Host, p vdcapi.Payload) {
	h.HandleNotification(context.Background(), nil, vdcapi.Envelope{Payload: p})
}

func TestNotificationFailingTargetDoesNotAbortBatch(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.lamps[0].DSUID(), env.lamps[1].DSUID()
	unknown := dsuid.FromName("ghost", dsuid.NamespaceVDC)
	env.driver.fail[b.String()] = true

	notify(env.host, &vdcapi.NotificationCallScene{DSUIDs: []dsuid.DSUID{unknown, b, a}, Scene: device.SceneOn})

	if calls := env.driver.calls(a); len(calls) != 1 || calls[0][device.ChannelBrightness] != 100 {
		t.Errorf("lamp a driver calls = %v, want one call at 100", calls)
	}
	if env.metrics.targets != 3 || env.metrics.failed != 2 {
		t.Errorf("metrics targets=%d failed=%d, want 3 and 2", env.metrics.targets, env.metrics.failed)
	}
	if n := len(env.events.kinds(EventNotificationFailed)); n != 2 {
		t.Errorf("failure events = %d, want 2", n)
	}
	if n := len(env.events.kinds(EventNotification)); n != 1 {
		t.Errorf("success events = %d, want 1", n)
	}
}

func TestNotificationFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter vdcapi.Filter
		wantA  int
		wantB  int
	}{
		{"no filter", vdcapi.Filter{}, 1, 1},
		{"matching zone", vdcapi.Filter{ZoneID: int32Ptr(3)}, 1, 1},
		{"other zone", vdcapi.Filter{ZoneID: int32Ptr(4)}, 0, 0},
		{"apartment zone", vdcapi.Filter{ZoneID: int32Ptr(0)}, 1, 1},
		{"light group", vdcapi.Filter{Group: int32Ptr(device.GroupLight)}, 1, 0},
		{"shade group", vdcapi.Filter{Group: int32Ptr(device.GroupShade)}, 0, 1},
		{"broadcast group", vdcapi.Filter{Group: int32Ptr(0)}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			a, b := env.lamps[0].DSUID(), env.lamps[1].DSUID()

			notify(env.host, &vdcapi.NotificationCallScene{
				DSUIDs: []dsuid.DSUID{a, b},
				Scene:  device.SceneOn,
				Filter: tt.filter,
			})

			if got := len(env.driver.calls(a)); got != tt.wantA {
				t.Errorf("lamp a calls = %d, want %d", got, tt.wantA)
			}
			if got := len(env.driver.calls(b)); got != tt.wantB {
				t.Errorf("lamp b calls = %d, want %d", got, tt.wantB)
			}
		})
	}
}

func TestNotificationSceneOperations(t *testing.T) {
	env := newTestEnv(t)
	lamp := env.lamps[0]
	targets := []dsuid.DSUID{lamp.DSUID()}

	notify(env.host, &vdcapi.NotificationSetOutputChannelValue{
		DSUIDs: targets, Channel: int32(device.ChannelBrightness), Value: 40, ApplyNow: true,
	})
	if got, _, _ := lamp.ChannelValue(0); got != 40 {
		t.Fatalf("brightness after set = %v, want 40", got)
	}

	notify(env.host, &vdcapi.NotificationSaveScene{DSUIDs: targets, Scene: 17})
	if !env.repo.has(lamp.DSUID().String()) {
		t.Error("saved scene not persisted")
	}

	notify(env.host, &vdcapi.NotificationCallScene{DSUIDs: targets, Scene: device.SceneOff})
	if got, _, _ := lamp.ChannelValue(0); got != 0 {
		t.Errorf("brightness after off = %v, want 0", got)
	}

	notify(env.host, &vdcapi.NotificationCallScene{DSUIDs: targets, Scene: 17})
	if got, _, _ := lamp.ChannelValue(0); got != 40 {
		t.Errorf("brightness after saved scene = %v, want 40", got)
	}

	notify(env.host, &vdcapi.NotificationUndoScene{DSUIDs: targets, Scene: 17})
	if got, _, _ := lamp.ChannelValue(0); got != 0 {
		t.Errorf("brightness after undo = %v, want 0", got)
	}

	notify(env.host, &vdcapi.NotificationSetLocalPrio{DSUIDs: targets, Scene: device.SceneOn})
	if !lamp.LocalPriority() {
		t.Error("local priority not set")
	}
}

func TestNotificationChannelAddressing(t *testing.T) {
	env := newTestEnv(t)
	lamp := env.lamps[0]
	targets := []dsuid.DSUID{lamp.DSUID()}

	notify(env.host, &vdcapi.NotificationSetOutputChannelValue{
		DSUIDs: targets, ChannelID: "missing", Value: 10, ApplyNow: true,
	})
	if env.metrics.failed != 1 {
		t.Errorf("failed = %d, want 1 for an unknown channel id", env.metrics.failed)
	}

	notify(env.host, &vdcapi.NotificationDimChannel{
		DSUIDs: targets, Channel: int32(device.ChannelBrightness), Mode: vdcapi.DimUp,
	})
	if got, ok, _ := lamp.ChannelValue(0); !ok || got <= 0 {
		t.Errorf("brightness after dim up = %v (ok %v), want > 0", got, ok)
	}
}

func TestNotificationIdentifyAndControlValue(t *testing.T) {
	env := newTestEnv(t)
	targets := []dsuid.DSUID{env.lamps[0].DSUID(), env.lamps[1].DSUID()}

	notify(env.host, &vdcapi.NotificationIdentify{DSUIDs: targets})
	notify(env.host, &vdcapi.NotificationSetControlValue{DSUIDs: targets, Name: "heatingLevel", Value: 55})

	env.driver.mu.Lock()
	defer env.driver.mu.Unlock()
	if env.driver.identified != 2 {
		t.Errorf("identified = %d, want 2", env.driver.identified)
	}
	if env.driver.controls["heatingLevel"] != 55 {
		t.Errorf("heatingLevel = %v, want 55", env.driver.controls["heatingLevel"])
	}
}
