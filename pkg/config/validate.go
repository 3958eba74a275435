package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/prometheus/common/model"
	"github.com/robfig/cron/v3"

	"mercator-hq/pulse/pkg/security/secrets"
	"mercator-hq/pulse/pkg/telemetry/logging"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateRelay(&cfg.Relay)...)
	errs = append(errs, validateCollector(&cfg.Collector)...)
	errs = append(errs, validateReporter(&cfg.Reporter)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	timeouts := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout},
		{"server.idle_timeout", cfg.IdleTimeout},
		{"server.shutdown_timeout", cfg.ShutdownTimeout},
	}
	for _, t := range timeouts {
		if t.value < 0 {
			errs = append(errs, FieldError{Field: t.field, Message: "timeout must be positive"})
		}
	}

	if cfg.ScrapeTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.scrape_timeout",
			Message: "scrape timeout must be positive",
		})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be positive",
		})
	}

	errs = append(errs, validateTLS(&cfg.TLS)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)

	return errs
}

// validateLimits validates ingestion limits.
func validateLimits(cfg *LimitsConfig) []FieldError {
	var errs []FieldError
	if cfg.SamplesPerSecond < 0 {
		errs = append(errs, FieldError{Field: "server.limits.samples_per_second", Message: "must not be negative"})
	}
	if cfg.Burst < 0 {
		errs = append(errs, FieldError{Field: "server.limits.burst", Message: "must not be negative"})
	}
	if cfg.MaxConcurrent < 0 {
		errs = append(errs, FieldError{Field: "server.limits.max_concurrent", Message: "must not be negative"})
	}
	return errs
}

// validateTLS validates server TLS configuration.
func validateTLS(cfg *TLSConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if cfg.CertFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "cert file is required when TLS is enabled"})
	}
	if cfg.KeyFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key file is required when TLS is enabled"})
	}
	if cfg.MinVersion != "1.2" && cfg.MinVersion != "1.3" {
		errs = append(errs, FieldError{
			Field:   "server.tls.min_version",
			Message: fmt.Sprintf("invalid TLS version %q: must be '1.2' or '1.3'", cfg.MinVersion),
		})
	}
	if cfg.ReloadInterval <= 0 {
		errs = append(errs, FieldError{Field: "server.tls.reload_interval", Message: "reload interval must be positive"})
	}
	return errs
}

// validateAuth validates producer tokens.
func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool, len(cfg.Tokens))
	for i, tok := range cfg.Tokens {
		field := fmt.Sprintf("server.auth.tokens[%d]", i)
		switch {
		case tok.Name == "":
			errs = append(errs, FieldError{Field: field + ".name", Message: "token name is required"})
		case seen[tok.Name]:
			errs = append(errs, FieldError{Field: field + ".name", Message: fmt.Sprintf("duplicate token name %q", tok.Name)})
		}
		seen[tok.Name] = true
		// References are checked once resolved.
		if !secrets.IsReference(tok.Token) && len(tok.Token) < 16 {
			errs = append(errs, FieldError{Field: field + ".token", Message: "token must be at least 16 characters"})
		}
	}
	if cfg.ProtectMetrics && len(cfg.Tokens) == 0 {
		errs = append(errs, FieldError{Field: "server.auth.protect_metrics", Message: "requires at least one token"})
	}
	return errs
}

// validateRelay validates relay configuration.
func validateRelay(cfg *RelayConfig) []FieldError {
	var errs []FieldError

	if cfg.QueueWatermark <= 0 {
		errs = append(errs, FieldError{
			Field:   "relay.queue_watermark",
			Message: "queue watermark must be positive",
		})
	}

	return errs
}

// validateCollector validates collector configuration.
func validateCollector(cfg *CollectorConfig) []FieldError {
	var errs []FieldError

	if !model.IsValidLegacyMetricName(cfg.Namespace) {
		errs = append(errs, FieldError{
			Field:   "collector.namespace",
			Message: fmt.Sprintf("invalid namespace %q: must match [a-zA-Z_][a-zA-Z0-9_]*", cfg.Namespace),
		})
	}
	if cfg.ProcessMaxAge <= 0 {
		errs = append(errs, FieldError{
			Field:   "collector.process_max_age",
			Message: "process max age must be positive",
		})
	}
	for i, r := range cfg.Routes {
		if r.Controller == "" || r.Action == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("collector.routes[%d]", i),
				Message: "controller and action are required",
			})
		}
	}

	return errs
}

// validateReporter validates reporter configuration.
func validateReporter(cfg *ReporterConfig) []FieldError {
	var errs []FieldError

	if !cfg.IsEnabled() {
		return nil
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "reporter.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
		})
	}

	return errs
}

// validateAudit validates audit log configuration.
func validateAudit(cfg *AuditConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	var errs []FieldError

	switch cfg.Driver {
	case "sqlite", "sqlite3":
		if cfg.Path == "" {
			errs = append(errs, FieldError{Field: "audit.path", Message: "path is required for SQLite drivers"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.driver",
			Message: fmt.Sprintf("invalid driver %q (must be sqlite, sqlite3 or memory)", cfg.Driver),
		})
	}
	if cfg.Buffer <= 0 {
		errs = append(errs, FieldError{Field: "audit.buffer", Message: "buffer must be positive"})
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "audit.write_timeout", Message: "timeout must be positive"})
	}
	if cfg.Retention.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "audit.retention.max_age", Message: "must not be negative"})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "audit.retention.max_records", Message: "must not be negative"})
	}
	if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "audit.retention.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Retention.Schedule, err),
		})
	}
	return errs
}

// validateTelemetry validates logging configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	tr := cfg.Tracing
	switch tr.Sampler {
	case "always", "never":
	case "ratio":
		if tr.SampleRatio < 0 || tr.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("sample ratio must be between 0.0 and 1.0, got %g", tr.SampleRatio),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", tr.Sampler),
		})
	}
	if tr.Enabled {
		if tr.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
		if tr.Timeout < 0 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.timeout", Message: "timeout must be positive"})
		}
	}

	return errs
}
