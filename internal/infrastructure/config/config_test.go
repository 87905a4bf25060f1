package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vdcd.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
host:
  mac: "AA:BB:CC:DD:EE:FF"
  name: "Cellar host"
  listen: ":9444"
vdcs:
  - implementation_id: "x-test-light"
    name: "Lights"
    zone_id: 2
    identification: true
session:
  request_timeout: 10
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
api:
  port: 8091
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host.Listen != ":9444" {
		t.Errorf("Host.Listen = %q, want %q", cfg.Host.Listen, ":9444")
	}
	if len(cfg.Vdcs) != 1 || cfg.Vdcs[0].ImplementationID != "x-test-light" || !cfg.Vdcs[0].Identification {
		t.Errorf("Vdcs = %+v", cfg.Vdcs)
	}
	if cfg.GetRequestTimeout().Seconds() != 10 {
		t.Errorf("GetRequestTimeout() = %v, want 10s", cfg.GetRequestTimeout())
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.TopicPrefix != "vdc" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	// Defaults survive for keys the file does not set.
	if cfg.Session.MaxInFlight != 8 {
		t.Errorf("Session.MaxInFlight = %d, want default 8", cfg.Session.MaxInFlight)
	}
}

func TestLoad_Devices(t *testing.T) {
	path := writeConfig(t, `
vdcs:
  - implementation_id: "x-test-light"
    devices:
      - address: "hall-dimmer"
        model: "Dual"
        functions:
          - key: "a"
            sub_index: 0
            output_function: 1
            channels: [1]
            primary_group: 1
        inputs:
          - kind: "button"
            bound_to: "a"
          - kind: "sensor"
            index: 2
            standalone: true
            sub_index: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	devices := cfg.Vdcs[0].Devices
	if len(devices) != 1 {
		t.Fatalf("len(Devices) = %d, want 1", len(devices))
	}
	d := devices[0]
	if d.Address != "hall-dimmer" || d.Model != "Dual" || len(d.Functions) != 1 {
		t.Errorf("device = %+v", d)
	}
	if fn := d.Functions[0]; fn.OutputFunction != 1 || len(fn.Channels) != 1 || fn.Channels[0] != 1 {
		t.Errorf("function = %+v", fn)
	}
	if len(d.Inputs) != 2 {
		t.Fatalf("len(Inputs) = %d, want 2", len(d.Inputs))
	}
	if d.Inputs[0].Index != nil {
		t.Errorf("button index = %v, want nil for automatic", *d.Inputs[0].Index)
	}
	if in := d.Inputs[1]; in.Index == nil || *in.Index != 2 || !in.Standalone || in.SubIndex != 5 {
		t.Errorf("sensor input = %+v", in)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Host.Listen != ":8444" {
		t.Errorf("Host.Listen = %q, want default :8444", cfg.Host.Listen)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/vdcd.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
vdcs:
  - name: "no id"
`))
	if err == nil {
		t.Error("Load() expected validation error for missing implementation_id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing listen", func(c *Config) { c.Host.Listen = "" }, "host.listen"},
		{"duplicate vdc", func(c *Config) {
			c.Vdcs = []VdcConfig{{ImplementationID: "x-a"}, {ImplementationID: "x-a"}}
		}, "duplicated"},
		{"zone out of range", func(c *Config) { c.Vdcs = []VdcConfig{{ImplementationID: "x-a", ZoneID: 70000}} }, "zone_id"},
		{"device without identity", func(c *Config) {
			c.Vdcs = []VdcConfig{{ImplementationID: "x-a", Devices: []DeviceConfig{{Functions: []FunctionConfig{{Key: "a"}}}}}}
		}, "vdcs[0].devices[0]: address or dsuid"},
		{"unit in two vdcs", func(c *Config) {
			unit := DeviceConfig{Address: "hall-1", Functions: []FunctionConfig{{Key: "a"}}}
			c.Vdcs = []VdcConfig{
				{ImplementationID: "x-a", Devices: []DeviceConfig{unit}},
				{ImplementationID: "x-b", Devices: []DeviceConfig{unit}},
			}
		}, `unit "hall-1" is duplicated`},
		{"unknown mounting", func(c *Config) {
			c.Vdcs = []VdcConfig{{ImplementationID: "x-a", Devices: []DeviceConfig{{Address: "a", Mounting: "glued", Functions: []FunctionConfig{{Key: "a"}}}}}}
		}, "mounting"},
		{"empty device", func(c *Config) {
			c.Vdcs = []VdcConfig{{ImplementationID: "x-a", Devices: []DeviceConfig{{Address: "a"}}}}
		}, "at least one function or input"},
		{"unknown input kind", func(c *Config) {
			c.Vdcs = []VdcConfig{{ImplementationID: "x-a", Devices: []DeviceConfig{{Address: "a", Inputs: []InputConfig{{Kind: "knob"}}}}}}
		}, "inputs[0].kind"},
		{"detachable without address", func(c *Config) {
			c.Vdcs = []VdcConfig{{ImplementationID: "x-a", Devices: []DeviceConfig{{
				Mounting:  MountingDetachable,
				Functions: []FunctionConfig{{Key: "a", ModuleAddress: "M-1"}},
			}}}}
		}, ""},
		{"api version", func(c *Config) { c.Session.MinAPIVersion = 0 }, "min_api_version"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"mqtt without prefix", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.TopicPrefix = "" }, "topic_prefix"},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"invalid port", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"disabled api ignores port", func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }, ""},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Host.Listen = ""
	cfg.Database.Path = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "host.listen") || !strings.Contains(err.Error(), "database.path") {
		t.Errorf("Validate() error = %v, want both problems", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("VDC_HOST_MAC", "11:22:33:44:55:66")
	t.Setenv("VDC_HOST_LISTEN", ":7000")
	t.Setenv("VDC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("VDC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("VDC_MQTT_PASSWORD", "testpass")
	t.Setenv("VDC_API_PORT", "9000")
	t.Setenv("VDC_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("VDC_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Host.MAC != "11:22:33:44:55:66" {
		t.Errorf("Host.MAC = %q", cfg.Host.MAC)
	}
	if cfg.Host.Listen != ":7000" {
		t.Errorf("Host.Listen = %q, want :7000", cfg.Host.Listen)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Vdcs) != 2 {
		t.Fatalf("len(Vdcs) = %d, want 2", len(cfg.Vdcs))
	}
	if d := cfg.Vdcs[0].Devices; len(d) != 1 || len(d[0].Functions) != 2 {
		t.Errorf("light vDC devices = %+v, want one dual dimmer", d)
	}
	if cfg.Host.Listen != ":8444" {
		t.Errorf("Host.Listen = %q, want :8444", cfg.Host.Listen)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.TopicPrefix != "vdc" {
		t.Errorf("MQTT = %+v, want enabled with prefix vdc", cfg.MQTT)
	}
}
