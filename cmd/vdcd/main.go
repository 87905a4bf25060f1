// vdcd is the vDC host daemon.
//
// It exposes the configured virtual device connectors to a digitalSTROM
// vdSM over the vDC API, persists names and zones in SQLite, bridges
// device drivers over MQTT and serves a read-only status API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/vdc-core/migrations"

	"github.com/nerrad567/vdc-core/internal/api"
	"github.com/nerrad567/vdc-core/internal/audit"
	"github.com/nerrad567/vdc-core/internal/bridges/mqttdriver"
	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/infrastructure/config"
	"github.com/nerrad567/vdc-core/internal/infrastructure/database"
	"github.com/nerrad567/vdc-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/vdc-core/internal/infrastructure/logging"
	"github.com/nerrad567/vdc-core/internal/infrastructure/metrics"
	"github.com/nerrad567/vdc-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/vdc-core/internal/session"
	"github.com/nerrad567/vdc-core/internal/transport"
	"github.com/nerrad567/vdc-core/internal/vdc"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// configEnv overrides the default config path when --config is not given.
	configEnv = "VDC_CONFIG"

	shutdownTimeout = 5 * time.Second
	pruneInterval   = 6 * time.Hour
)

// errVersionRequested stops run after printing the version.
var errVersionRequested = errors.New("version requested")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errVersionRequested) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command line flags.
type options struct {
	configPath string
	version    bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("vdcd", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration (default $"+configEnv+" or "+defaultConfigPath+")")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.configPath == "" {
		opts.configPath = getConfigPath()
	}
	return opts, nil
}

// getConfigPath returns the config path from VDC_CONFIG, or the default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// run starts every component and blocks until ctx is cancelled.
// Components are stopped in reverse order by the deferred calls.
func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Printf("vdcd %s (commit %s, built %s)\n", version, commit, date)
		return errVersionRequested
	}

	log := logging.Default()
	log.Info("starting vdcd", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", opts.configPath, "level", cfg.Logging.Level)

	// Database
	db, err := database.Open(database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Registry and host
	repo := device.NewSQLiteRepository(db.DB)
	history := device.NewSQLiteStateHistoryRepository(db.DB)
	registry := device.NewRegistry(repo)
	registry.SetLogger(log.Component("registry"))
	registry.SetHistory(history)

	host, err := newHost(ctx, cfg, registry, repo, log)
	if err != nil {
		return err
	}

	m := metrics.New()
	host.SetMetrics(m)
	m.AddGauge("devices", "Devices in the registry.", func() float64 {
		return float64(registry.GetDeviceCount())
	})
	m.AddGauge("vdsds", "Addressable vdSDs in the registry.", func() float64 {
		return float64(registry.GetStats().Vdsds)
	})

	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, audit.RecorderConfig{Logger: log.Component("audit")})
	recorder.Start(ctx)
	defer recorder.Stop()
	host.AddEventSink(recorder)
	m.AddGauge("audit_dropped", "Audit entries lost to a full queue.", func() float64 {
		return float64(recorder.Dropped())
	})

	if cfg.Database.HistoryRetention > 0 {
		retention := time.Duration(cfg.Database.HistoryRetention) * 24 * time.Hour
		go pruneLoop(ctx, history, retention, log)
		go pruneLoop(ctx, auditRepo, retention, log)
	}

	checks := map[string]api.HealthChecker{"database": db}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		host.AddEventSink(newInfluxSink(influxClient))
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT driver bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		checks["mqtt"] = mqttClient

		stop, bridgeErr := startBridge(ctx, mqttClient, host, registry, m, log)
		if bridgeErr != nil {
			return bridgeErr
		}
		defer stop()
	} else {
		log.Info("MQTT driver bridge disabled")
	}

	// Status API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Host:     host,
			Version:  version,
			Metrics:  m.Handler(),
			Requests: m,
			Checks:   checks,
			DB:       db,
			Audit:    auditRepo,
			History:  history,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		srv, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		host.AddEventSink(srv.Hub())
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	// vDC API listener
	listener := transport.NewServer(transport.ServerConfig{Address: cfg.Host.Listen}, host, log.Component("transport"))
	if err := listener.Start(ctx); err != nil {
		return fmt.Errorf("starting vDC API listener: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if vanishErr := host.Shutdown(shutdownCtx); vanishErr != nil {
			log.Warn("vanish on shutdown failed", "error", vanishErr)
		}
		if closeErr := listener.Close(); closeErr != nil {
			log.Error("error closing vDC API listener", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("vdcd ready", "dsuid", host.DSUID().String(), "listen", cfg.Host.Listen, "vdcs", len(host.Vdcs()))

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// newHost builds the host entity, its vDCs and their configured devices
// from cfg.
func newHost(ctx context.Context, cfg *config.Config, registry *device.Registry, settings vdc.SettingsStore, log *logging.Logger) (*vdc.Host, error) {
	host, err := vdc.NewHost(vdc.Config{
		MAC:   cfg.Host.MAC,
		DSUID: cfg.Host.DSUID,
		Name:  cfg.Host.Name,
		Info: device.Info{
			Model:      cfg.Host.Model,
			VendorName: cfg.Host.VendorName,
			ConfigURL:  cfg.Host.ConfigURL,
		},
		Session: session.Config{
			MinAPIVersion:  uint32(cfg.Session.MinAPIVersion), //nolint:gosec // validated >= 1
			RequestTimeout: cfg.GetRequestTimeout(),
			MaxInFlight:    cfg.Session.MaxInFlight,
			QueueSize:      cfg.Session.QueueSize,
		},
	}, registry)
	if err != nil {
		return nil, fmt.Errorf("creating host: %w", err)
	}
	host.SetLogger(log.Component("host"))
	host.SetSettingsStore(ctx, settings)

	for _, vc := range cfg.Vdcs {
		v, err := vdc.NewVdc(vdc.VdcConfig{
			ImplementationID: vc.ImplementationID,
			Name:             vc.Name,
			ZoneID:           vc.ZoneID,
			Info: device.Info{
				Model:      vc.Model,
				VendorName: cfg.Host.VendorName,
			},
			Capabilities: vdc.Capabilities{
				Metering:           vc.Metering,
				Identification:     vc.Identification,
				DynamicDefinitions: vc.DynamicDefinitions,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("creating vDC %s: %w", vc.ImplementationID, err)
		}
		if err := host.AddVdc(ctx, v); err != nil {
			return nil, fmt.Errorf("adding vDC %s: %w", vc.ImplementationID, err)
		}
		log.Info("vDC configured", "implementation_id", vc.ImplementationID, "dsuid", v.DSUID().String())
		if err := addDevices(ctx, host, v, vc, cfg.Host.VendorName, log); err != nil {
			return nil, err
		}
	}
	return host, nil
}

// startBridge wires the MQTT driver bridge as the registry's driver and a
// host event sink. The returned func stops it.
func startBridge(ctx context.Context, client *mqtt.Client, host *vdc.Host, registry *device.Registry, m *metrics.Metrics, log *logging.Logger) (func(), error) {
	bridge, err := mqttdriver.NewBridge(mqttdriver.Options{
		Client: client,
		Topics: client.Topics(),
		QoS:    client.QoS(),
		Host:   host,
		Logger: log.Component("mqttdriver"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating driver bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting driver bridge: %w", err)
	}
	registry.SetDriver(bridge)
	host.AddEventSink(bridge)

	health := mqttdriver.NewHealthReporter(bridge, mqttdriver.HealthConfig{Version: version})
	health.Start(ctx)

	m.AddGauge("bridge_inputs_total", "Driver reports received over MQTT.", func() float64 {
		return float64(bridge.GetMetrics().InputsReceived)
	})
	m.AddGauge("bridge_events_dropped", "Host events not mirrored to MQTT.", func() float64 {
		return float64(bridge.GetMetrics().EventsDropped)
	})

	return func() {
		log.Info("stopping driver bridge")
		health.Stop()
		bridge.Stop()
	}, nil
}

// historyPruner is implemented by the value history and the audit log.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneLoop deletes history rows older than retention until ctx ends.
func pruneLoop(ctx context.Context, h historyPruner, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		n, err := h.PruneHistory(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("pruning history failed", "error", err)
		case n > 0:
			log.Info("pruned history", "rows", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// healthCheck verifies every enabled infrastructure connection.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
