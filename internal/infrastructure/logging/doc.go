// Package logging provides structured logging for the vDC host daemon.
//
// It wraps log/slog. Every entry carries the service and version fields;
// subsystems add a component field via Logger.Component.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// VDC_LOG_LEVEL overrides the level.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("listening for vdSM", "address", cfg.Host.Listen)
//	host.SetLogger(logger.Component("vdc"))
//
// Never log MQTT or InfluxDB credentials.
package logging
