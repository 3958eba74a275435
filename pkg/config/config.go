package config

import (
	"time"

	"mercator-hq/pulse/pkg/collector"
)

// Config is the root configuration structure for pulse.
type Config struct {
	// Server contains the HTTP listener configuration for scraping and
	// sample ingestion.
	Server ServerConfig `yaml:"server"`

	// Relay contains the worker pipe configuration.
	Relay RelayConfig `yaml:"relay"`

	// Collector contains the aggregation configuration.
	Collector CollectorConfig `yaml:"collector"`

	// Reporter contains the self-reporting configuration of the server
	// process.
	Reporter ReporterConfig `yaml:"reporter"`

	// Audit contains the ingestion audit log configuration.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains logging configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Watch enables hot reload of the configuration file.
	// Default: false
	Watch bool `yaml:"watch"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:9405", "0.0.0.0:9405").
	// Default: "127.0.0.1:9405"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// ScrapeTimeout bounds how long /metrics waits for the collector.
	// Default: 2s
	ScrapeTimeout time.Duration `yaml:"scrape_timeout"`

	// MaxBodyBytes limits the decompressed size of a /send-metrics body.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// TLS serves HTTPS instead of plain HTTP when enabled.
	TLS TLSConfig `yaml:"tls"`

	// Auth requires producers to present a token.
	Auth AuthConfig `yaml:"auth"`

	// Limits throttles /send-metrics per producer.
	Limits LimitsConfig `yaml:"limits"`
}

// LimitsConfig contains ingestion rate limits. Zero disables a limit.
type LimitsConfig struct {
	// SamplesPerSecond is the sustained sample rate allowed per producer.
	// Producers are keyed by token name, or by client address without auth.
	SamplesPerSecond float64 `yaml:"samples_per_second"`

	// Burst is how many samples a producer may send at once.
	// Default: twice samples_per_second
	Burst int `yaml:"burst"`

	// MaxConcurrent caps simultaneous /send-metrics requests.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// Enabled reports whether any limit is set.
func (l LimitsConfig) Enabled() bool {
	return l.SamplesPerSecond > 0 || l.MaxConcurrent > 0
}

// TLSConfig contains server certificate configuration.
type TLSConfig struct {
	// Enabled switches the listener to TLS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM files. Both are required when enabled.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// ClientCAFile enables mutual TLS: client certificates must chain to
	// one of these CAs.
	ClientCAFile string `yaml:"client_ca_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// ReloadInterval is how often the certificate files are checked for
	// changes.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// AuthConfig contains producer authentication settings. With no tokens
// configured, authentication is off.
type AuthConfig struct {
	// Tokens lists accepted bearer tokens.
	Tokens []TokenConfig `yaml:"tokens"`

	// ProtectMetrics also requires a token on /metrics.
	// Default: false
	ProtectMetrics bool `yaml:"protect_metrics"`

	// SecretsDir holds one file per secret for ${secret:name} token
	// references. PULSE_SECRET_* environment variables are tried first.
	SecretsDir string `yaml:"secrets_dir"`
}

// TokenConfig is one accepted token.
type TokenConfig struct {
	// Name identifies the producer in logs.
	Name string `yaml:"name"`

	// Token is the secret presented as "Authorization: Bearer <token>".
	// It may be a ${secret:name} reference.
	Token string `yaml:"token"`
}

// Enabled reports whether any token is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.Tokens) > 0
}

// RelayConfig contains configuration for the relay between the HTTP
// handlers and the collector worker.
type RelayConfig struct {
	// QueueWatermark is the queue depth that triggers a flood warning.
	// Default: 10000
	QueueWatermark int `yaml:"queue_watermark"`
}

// CollectorConfig contains configuration for sample aggregation.
type CollectorConfig struct {
	// Namespace prefixes every built-in metric name.
	// Default: "pulse"
	Namespace string `yaml:"namespace"`

	// ProcessMaxAge is how long a process snapshot is kept without a
	// refresh.
	// Default: 60s
	ProcessMaxAge time.Duration `yaml:"process_max_age"`

	// Routes is the controller/action allow-list for web timing labels.
	// Default: collector.DefaultRoutes
	Routes []collector.Route `yaml:"routes"`
}

// ReporterConfig contains configuration for the periodic process reporter.
type ReporterConfig struct {
	// Enabled turns on self-reporting of the server process.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Schedule is a cron expression or descriptor such as "@every 30s".
	// Default: "@every 30s"
	Schedule string `yaml:"schedule"`

	// Type is the process type label reported for the server itself.
	// Default: "collector"
	Type string `yaml:"type"`
}

// IsEnabled returns the effective Enabled value.
func (r ReporterConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// AuditConfig contains configuration for the ingestion audit log.
type AuditConfig struct {
	// Enabled records one entry per /send-metrics request.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Driver is "sqlite" (pure Go), "sqlite3" (cgo) or "memory".
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file.
	// Default: "pulse-audit.db"
	Path string `yaml:"path"`

	// WALMode enables SQLite write-ahead logging.
	WALMode bool `yaml:"wal_mode"`

	// Buffer is the number of records queued before new ones are dropped.
	// Default: 1000
	Buffer int `yaml:"buffer"`

	// WriteTimeout bounds one database write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	Retention AuditRetentionConfig `yaml:"retention"`
}

// AuditRetentionConfig bounds the size of the audit log.
type AuditRetentionConfig struct {
	// MaxAge removes older records. 0 keeps them forever.
	MaxAge time.Duration `yaml:"max_age"`

	// MaxRecords keeps only the newest records. 0 is unlimited.
	MaxRecords int64 `yaml:"max_records"`

	// Schedule is the cron expression pruning runs on.
	// Default: "@every 1h"
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig contains configuration for OpenTelemetry request tracing.
type TracingConfig struct {
	// Enabled turns span export on. Incoming trace context is honoured
	// either way.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the endpoint.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of new traces sampled by the "ratio"
	// sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "pulse"
	ServiceName string `yaml:"service_name"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource adds source file and line to log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}
