// Package config handles loading and validating wizctl configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (WIZ_*)
//   - Validation of required fields
//   - Default value handling, including the WiZ protocol timeouts
//
// The CLI usually runs without a config file; LoadOrDefault returns the
// defaults in that case. Serve mode normally reads configs/config.yaml to
// enable MQTT, the HTTP API, SQLite and InfluxDB.
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.LoadOrDefault("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.WiZ.BroadcastAddresses)
package config
