// Package config handles loading and validating the vDC host daemon
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with VDC_* environment variables
//   - Validation of required fields, reporting every problem at once
//   - Default value handling
//
// Secrets (MQTT password, InfluxDB token) should be set through the
// environment rather than the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/vdcd.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Host.Listen)
package config
