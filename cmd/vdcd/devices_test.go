package main

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/infrastructure/config"
	"github.com/nerrad567/vdc-core/internal/infrastructure/logging"
	"github.com/nerrad567/vdc-core/internal/splitting"
)

func dimmerFn(key string, sub int, module string) config.FunctionConfig {
	return config.FunctionConfig{
		Key: key, SubIndex: sub, Name: key,
		OutputFunction: 1, Channels: []int{1}, PrimaryGroup: 1,
		ModuleAddress: module,
	}
}

func intPtr(n int) *int { return &n }

func TestDeviceDescription(t *testing.T) {
	explicit := dsuid.FromName("explicit", dsuid.NamespaceVDC)

	tests := []struct {
		name     string
		dc       config.DeviceConfig
		wantBase dsuid.DSUID
		wantErr  bool
	}{
		{
			name:     "address seeds the base",
			dc:       config.DeviceConfig{Address: " hall-1 ", Functions: []config.FunctionConfig{dimmerFn("a", 0, "")}},
			wantBase: dsuid.FromName("hall-1", dsuid.NamespaceVDC),
		},
		{
			name:     "dsuid overrides the address",
			dc:       config.DeviceConfig{Address: "hall-1", DSUID: explicit.String(), Functions: []config.FunctionConfig{dimmerFn("a", 0, "")}},
			wantBase: explicit,
		},
		{
			name: "detachable has no unit base",
			dc: config.DeviceConfig{Mounting: "Detachable", Functions: []config.FunctionConfig{
				dimmerFn("a", 0, "M-1"),
			}},
			wantBase: dsuid.Empty,
		},
		{
			name:    "integrated without identity",
			dc:      config.DeviceConfig{Functions: []config.FunctionConfig{dimmerFn("a", 0, "")}},
			wantErr: true,
		},
		{
			name:    "bad dsuid",
			dc:      config.DeviceConfig{DSUID: "zz", Functions: []config.FunctionConfig{dimmerFn("a", 0, "")}},
			wantErr: true,
		},
		{
			name:    "unknown mounting",
			dc:      config.DeviceConfig{Address: "x", Mounting: "glued"},
			wantErr: true,
		},
		{
			name:    "unknown input kind",
			dc:      config.DeviceConfig{Address: "x", Inputs: []config.InputConfig{{Kind: "knob"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := deviceDescription(tt.dc)
			if tt.wantErr {
				if err == nil {
					t.Fatal("deviceDescription() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("deviceDescription() error = %v", err)
			}
			if desc.Base != tt.wantBase {
				t.Errorf("Base = %s, want %s", desc.Base, tt.wantBase)
			}
			if len(desc.Functions) != len(tt.dc.Functions) {
				t.Errorf("len(Functions) = %d, want %d", len(desc.Functions), len(tt.dc.Functions))
			}
		})
	}
}

func TestDeviceDescriptionInputs(t *testing.T) {
	desc, err := deviceDescription(config.DeviceConfig{
		Address:   "rocker-1",
		Functions: []config.FunctionConfig{dimmerFn("a", 0, "")},
		Inputs: []config.InputConfig{
			{Kind: config.InputButton, BoundTo: "a", Name: "up"},
			{Kind: config.InputSensor, Index: intPtr(3), Type: 1, Standalone: true, SubIndex: 4},
		},
	})
	if err != nil {
		t.Fatalf("deviceDescription() error = %v", err)
	}
	if len(desc.Inputs) != 2 {
		t.Fatalf("len(Inputs) = %d, want 2", len(desc.Inputs))
	}
	first, second := desc.Inputs[0], desc.Inputs[1]
	if first.Kind != splitting.Button || first.Index != splitting.AutoIndex || first.BoundTo != "a" {
		t.Errorf("button input = %+v, want bound button with automatic index", first)
	}
	if second.Kind != splitting.Sensor || second.Index != 3 || !second.Standalone || second.SubIndex != 4 {
		t.Errorf("sensor input = %+v, want standalone sensor 3 at sub-device 4", second)
	}
}

func TestNewHostProvisionsDevices(t *testing.T) {
	cfg := &config.Config{
		Host: config.HostConfig{MAC: "02:00:00:00:00:01", VendorName: "acme"},
		Vdcs: []config.VdcConfig{{
			ImplementationID: "x-test-light",
			Devices: []config.DeviceConfig{
				{
					Address:   "dual-1",
					Model:     "Dual",
					Functions: []config.FunctionConfig{dimmerFn("a", 0, ""), dimmerFn("b", 1, "")},
					Inputs:    []config.InputConfig{{Kind: config.InputButton, BoundTo: "a"}},
				},
				{
					Mounting:   config.MountingDetachable,
					VendorName: "modular",
					Functions:  []config.FunctionConfig{dimmerFn("a", 0, "M-1"), dimmerFn("b", 1, "M-2")},
				},
			},
		}},
		Session: config.SessionConfig{MinAPIVersion: 2},
	}
	registry := device.NewRegistry(nil)

	host, err := newHost(context.Background(), cfg, registry, nil, logging.Default())
	if err != nil {
		t.Fatalf("newHost() error = %v", err)
	}
	devices := registry.ListDevicesOfVdc(host.Vdcs()[0].DSUID())
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}
	if got := len(registry.ListVdsds()); got != 4 {
		t.Errorf("len(ListVdsds()) = %d, want 4", got)
	}

	dual, err := registry.GetDevice(dsuid.FromName("dual-1", dsuid.NamespaceVDC))
	if err != nil {
		t.Fatalf("GetDevice(dual-1) error = %v", err)
	}
	first := dual.Vdsds()[0]
	if info := first.Info(); info.Model != "Dual" || info.VendorName != "acme" {
		t.Errorf("dual vdSD info = %+v, want model Dual from vendor acme", info)
	}
	if !host.Responds(first.DSUID()) {
		t.Error("host does not answer for a configured vdSD")
	}

	m1, _ := dsuid.Independent("M-1")
	modular, err := registry.GetDevice(m1)
	if err != nil {
		t.Fatalf("GetDevice(M-1) error = %v", err)
	}
	if got := modular.Vdsds()[0].Info().VendorName; got != "modular" {
		t.Errorf("detachable vendor = %q, want modular", got)
	}
}

func TestNewHostRejectsInvalidDevice(t *testing.T) {
	cfg := &config.Config{
		Host: config.HostConfig{MAC: "02:00:00:00:00:01"},
		Vdcs: []config.VdcConfig{{
			ImplementationID: "x-test-light",
			Devices: []config.DeviceConfig{{
				Address:   "dual-1",
				Functions: []config.FunctionConfig{dimmerFn("a", 1, ""), dimmerFn("b", 1, "")},
			}},
		}},
		Session: config.SessionConfig{MinAPIVersion: 2},
	}

	_, err := newHost(context.Background(), cfg, device.NewRegistry(nil), nil, logging.Default())
	if !errors.Is(err, device.ErrInvalidDevice) || !errors.Is(err, splitting.ErrDuplicateSubIndex) {
		t.Errorf("newHost() error = %v, want ErrInvalidDevice wrapping ErrDuplicateSubIndex", err)
	}
}
