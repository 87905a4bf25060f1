package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the vDC host daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Host     HostConfig     `yaml:"host"`
	Vdcs     []VdcConfig    `yaml:"vdcs"`
	Session  SessionConfig  `yaml:"session"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HostConfig describes the vDC host entity and its listener.
type HostConfig struct {
	// MAC seeds the host dSUID. Empty means the first network interface.
	MAC string `yaml:"mac"`

	// DSUID overrides the MAC-derived identifier.
	DSUID string `yaml:"dsuid"`

	Name       string `yaml:"name"`
	Model      string `yaml:"model"`
	VendorName string `yaml:"vendor_name"`
	ConfigURL  string `yaml:"config_url"`

	// Listen is the TCP address the vdSM connects to.
	Listen string `yaml:"listen"`
}

// VdcConfig describes one virtual device connector.
type VdcConfig struct {
	ImplementationID   string `yaml:"implementation_id"`
	Name               string `yaml:"name"`
	Model              string `yaml:"model"`
	ZoneID             int    `yaml:"zone_id"`
	Metering           bool   `yaml:"metering"`
	Identification     bool   `yaml:"identification"`
	DynamicDefinitions bool   `yaml:"dynamic_definitions"`

	// Devices are the units provisioned at startup.
	Devices []DeviceConfig `yaml:"devices"`
}

// Mounting values of DeviceConfig.
const (
	MountingIntegrated = "integrated"
	MountingDetachable = "detachable"
)

// Input kinds of InputConfig.
const (
	InputButton      = "button"
	InputBinaryInput = "binary_input"
	InputSensor      = "sensor"
)

// DeviceConfig is the capability description of one physical unit.
type DeviceConfig struct {
	// Address seeds the base dSUID of an integrated unit.
	Address string `yaml:"address"`

	// DSUID overrides the address-derived base.
	DSUID string `yaml:"dsuid"`

	// Mounting is integrated (default) or detachable. Detachable units
	// take their identity from each function's module_address.
	Mounting string `yaml:"mounting"`

	Model      string `yaml:"model"`
	VendorName string `yaml:"vendor_name"`

	Functions []FunctionConfig `yaml:"functions"`
	Inputs    []InputConfig    `yaml:"inputs"`

	// InputOnlySubIndex places the device collecting unbound inputs of a
	// unit without outputs.
	InputOnlySubIndex int `yaml:"input_only_sub_index"`
}

// FunctionConfig is one output function of a unit.
type FunctionConfig struct {
	Key            string `yaml:"key"`
	SubIndex       int    `yaml:"sub_index"`
	Name           string `yaml:"name"`
	OutputFunction int    `yaml:"output_function"`
	Channels       []int  `yaml:"channels"`
	ZoneID         int    `yaml:"zone_id"`
	PrimaryGroup   int    `yaml:"primary_group"`
	SceneSet       string `yaml:"scene_set"`
	Combine        string `yaml:"combine"`
	ModuleAddress  string `yaml:"module_address"`
}

// InputConfig is a button, binary input or sensor of a unit.
type InputConfig struct {
	Kind string `yaml:"kind"`

	// Index is the position in the input collection; nil picks the next
	// free one.
	Index *int `yaml:"index"`

	Name     string `yaml:"name"`
	Type     int    `yaml:"type"`
	Group    int    `yaml:"group"`
	Function int    `yaml:"function"`

	// BoundTo names the function key the input belongs to.
	BoundTo string `yaml:"bound_to"`

	Standalone    bool   `yaml:"standalone"`
	SubIndex      int    `yaml:"sub_index"`
	ZoneID        int    `yaml:"zone_id"`
	PrimaryGroup  int    `yaml:"primary_group"`
	ModuleAddress string `yaml:"module_address"`
}

// SessionConfig tunes the vdSM session.
type SessionConfig struct {
	MinAPIVersion  int `yaml:"min_api_version"`
	RequestTimeout int `yaml:"request_timeout"` // seconds
	MaxInFlight    int `yaml:"max_in_flight"`
	QueueSize      int `yaml:"queue_size"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is the number of days of value history kept. 0 keeps everything.
	HistoryRetention int `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// TopicPrefix is the root of the driver bridge and event topics.
	TopicPrefix string `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`

	// Tags are added to every point, e.g. site: home.
	Tags map[string]string `yaml:"tags"`
}

// APIConfig contains status HTTP API settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VDC_SECTION_KEY
// For example: VDC_DATABASE_PATH, VDC_HOST_LISTEN
//
// Parameters:
//   - path: Path to the YAML configuration file; empty uses defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			Model:      "vdcd",
			VendorName: "nerrad567",
			Listen:     ":8444",
		},
		Session: SessionConfig{
			MinAPIVersion:  2,
			RequestTimeout: 30,
			MaxInFlight:    8,
			QueueSize:      64,
		},
		Database: DatabaseConfig{
			Path:             "./data/vdcd.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "vdcd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "vdc",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VDC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Host
	if v := os.Getenv("VDC_HOST_MAC"); v != "" {
		cfg.Host.MAC = v
	}
	if v := os.Getenv("VDC_HOST_NAME"); v != "" {
		cfg.Host.Name = v
	}
	if v := os.Getenv("VDC_HOST_LISTEN"); v != "" {
		cfg.Host.Listen = v
	}

	// Database
	if v := os.Getenv("VDC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VDC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VDC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VDC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("VDC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VDC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("VDC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("VDC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Host.Listen == "" {
		errs = append(errs, "host.listen is required")
	}

	seen := make(map[string]bool)
	units := make(map[string]bool)
	for i, v := range c.Vdcs {
		switch {
		case v.ImplementationID == "":
			errs = append(errs, fmt.Sprintf("vdcs[%d].implementation_id is required", i))
		case seen[v.ImplementationID]:
			errs = append(errs, fmt.Sprintf("vdcs[%d].implementation_id %q is duplicated", i, v.ImplementationID))
		}
		seen[v.ImplementationID] = true
		if v.ZoneID < 0 || v.ZoneID > 65535 {
			errs = append(errs, fmt.Sprintf("vdcs[%d].zone_id must be between 0 and 65535", i))
		}
		for j, d := range v.Devices {
			errs = append(errs, d.validate(fmt.Sprintf("vdcs[%d].devices[%d]", i, j), units)...)
		}
	}

	if c.Session.MinAPIVersion < 1 {
		errs = append(errs, "session.min_api_version must be at least 1")
	}
	if c.Session.RequestTimeout < 0 || c.Session.MaxInFlight < 0 || c.Session.QueueSize < 0 {
		errs = append(errs, "session limits must not be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate checks one unit. units collects the unit identities seen so far
// across all vDCs.
func (d DeviceConfig) validate(at string, units map[string]bool) []string {
	var errs []string

	switch strings.ToLower(d.Mounting) {
	case "", MountingIntegrated:
		id := d.DSUID
		if id == "" {
			id = strings.TrimSpace(d.Address)
		}
		switch {
		case id == "":
			errs = append(errs, at+": address or dsuid is required")
		case units[id]:
			errs = append(errs, fmt.Sprintf("%s: unit %q is duplicated", at, id))
		}
		units[id] = true
	case MountingDetachable:
	default:
		errs = append(errs, fmt.Sprintf("%s.mounting %q is not integrated or detachable", at, d.Mounting))
	}

	if len(d.Functions) == 0 && len(d.Inputs) == 0 {
		errs = append(errs, at+": needs at least one function or input")
	}
	for k, in := range d.Inputs {
		switch in.Kind {
		case InputButton, InputBinaryInput, InputSensor:
		default:
			errs = append(errs, fmt.Sprintf("%s.inputs[%d].kind %q is not button, binary_input or sensor", at, k, in.Kind))
		}
	}
	return errs
}

// GetRequestTimeout returns the session request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Session.RequestTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
