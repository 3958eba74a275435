package config

import (
	"slices"
	"time"

	"mercator-hq/pulse/pkg/collector"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9405"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultScrapeTimeout   = 2 * time.Second
	DefaultMaxBodyBytes    = int64(10 << 20)
	DefaultTLSMinVersion   = "1.2"
	DefaultTLSReload       = 5 * time.Minute

	// Relay defaults
	DefaultRelayQueueWatermark = 10000

	// Collector defaults
	DefaultNamespace     = "pulse"
	DefaultProcessMaxAge = collector.DefaultProcessMaxAge

	// Reporter defaults
	DefaultReporterSchedule = "@every 30s"
	DefaultReporterType     = "collector"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Audit defaults
	DefaultAuditDriver       = "sqlite"
	DefaultAuditPath         = "pulse-audit.db"
	DefaultAuditBuffer       = 1000
	DefaultAuditWriteTimeout = 5 * time.Second
	DefaultAuditSchedule     = "@every 1h"

	// Tracing defaults
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingService     = "pulse"
)

// ApplyDefaults fills every unset field with its default. Fields that are
// already set are left untouched.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.ScrapeTimeout == 0 {
		cfg.Server.ScrapeTimeout = DefaultScrapeTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// TLS defaults
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Server.TLS.ReloadInterval == 0 {
		cfg.Server.TLS.ReloadInterval = DefaultTLSReload
	}

	// Relay defaults
	if cfg.Relay.QueueWatermark == 0 {
		cfg.Relay.QueueWatermark = DefaultRelayQueueWatermark
	}

	// Collector defaults
	if cfg.Collector.Namespace == "" {
		cfg.Collector.Namespace = DefaultNamespace
	}
	if cfg.Collector.ProcessMaxAge == 0 {
		cfg.Collector.ProcessMaxAge = DefaultProcessMaxAge
	}
	if cfg.Collector.Routes == nil {
		cfg.Collector.Routes = slices.Clone(collector.DefaultRoutes)
	}

	// Reporter defaults
	if cfg.Reporter.Enabled == nil {
		enabled := true
		cfg.Reporter.Enabled = &enabled
	}
	if cfg.Reporter.Schedule == "" {
		cfg.Reporter.Schedule = DefaultReporterSchedule
	}
	if cfg.Reporter.Type == "" {
		cfg.Reporter.Type = DefaultReporterType
	}

	// Audit defaults
	if cfg.Audit.Driver == "" {
		cfg.Audit.Driver = DefaultAuditDriver
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditPath
	}
	if cfg.Audit.Buffer == 0 {
		cfg.Audit.Buffer = DefaultAuditBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = DefaultAuditSchedule
	}

	// Logging defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}

	// Tracing defaults
	tr := &cfg.Telemetry.Tracing
	if tr.Endpoint == "" {
		tr.Endpoint = DefaultTracingEndpoint
	}
	if tr.Timeout == 0 {
		tr.Timeout = DefaultTracingTimeout
	}
	if tr.Sampler == "" {
		tr.Sampler = DefaultTracingSampler
		if tr.SampleRatio == 0 {
			tr.SampleRatio = DefaultTracingSampleRatio
		}
	}
	if tr.ServiceName == "" {
		tr.ServiceName = DefaultTracingService
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
