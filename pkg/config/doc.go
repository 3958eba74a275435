// Package config provides configuration management for pulse.
//
// Configuration is read from a YAML file, completed with defaults, optionally
// overridden from the environment and validated before use.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("pulse.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("pulse.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PULSE_SECTION_FIELD.
// For example:
//
//   - PULSE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - PULSE_COLLECTOR_NAMESPACE overrides collector.namespace
//   - PULSE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Every problem found is reported at once:
//
//	configuration validation failed with 2 errors:
//	  - server.listen_address: listen address is required
//	  - reporter.schedule: invalid cron schedule "every minute": ...
//
// # Hot Reload
//
// FileWatcher watches the configuration file and calls back after a quiet
// period. Only the log level and the collector route allow-list are applied
// to a running process.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:9405"
//	  scrape_timeout: 2s
//
//	collector:
//	  namespace: "discourse"
//	  process_max_age: 60s
//	  routes:
//	    - {controller: list, action: latest}
//	    - {controller: topics, action: show}
//
//	reporter:
//	  enabled: true
//	  schedule: "@every 30s"
//
//	audit:
//	  enabled: true
//	  path: "/var/lib/pulse/audit.db"
//	  retention:
//	    max_age: 168h
//	    max_records: 1000000
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
