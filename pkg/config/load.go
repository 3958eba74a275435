package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/pulse/pkg/security/secrets"
)

// envPrefix prefixes every environment override.
const envPrefix = "PULSE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are ignored; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating. Unknown keys
// are rejected so typos surface at load time.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := unmarshalStrict(data, &cfg); err != nil {
			return nil, err
		}
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

func unmarshalStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention PULSE_SECTION_FIELD (e.g., PULSE_SERVER_LISTEN_ADDRESS).
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Resolve ${secret:name} token references
// 5. Validate final configuration
//
// An empty path starts from Default() instead of a file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := ResolveSecrets(context.Background(), cfg, secrets.NewEnvProvider("")); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// ResolveSecrets replaces ${secret:name} references in producer tokens.
// Providers are tried in order; a file provider for server.auth.secrets_dir
// is appended when it is set.
func ResolveSecrets(ctx context.Context, cfg *Config, providers ...secrets.Provider) error {
	if cfg.Server.Auth.SecretsDir != "" {
		files, err := secrets.NewFileProvider(cfg.Server.Auth.SecretsDir)
		if err != nil {
			return ValidationError{Errors: []FieldError{{Field: "server.auth.secrets_dir", Message: err.Error()}}}
		}
		providers = append(providers, files)
	}
	resolver := secrets.NewResolver(nil, providers...)

	var errs []FieldError
	for i := range cfg.Server.Auth.Tokens {
		tok := &cfg.Server.Auth.Tokens[i]
		if !secrets.IsReference(tok.Token) {
			continue
		}
		value, err := resolver.Resolve(ctx, tok.Token)
		if err != nil {
			errs = append(errs, FieldError{Field: fmt.Sprintf("server.auth.tokens[%d].token", i), Message: err.Error()})
			continue
		}
		tok.Token = value
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnvOverrides applies environment variable overrides to the configuration.
// A variable that is set but cannot be parsed is an error.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	o := overrider{lookup: lookup}

	// Server overrides
	o.setString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	o.setDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	o.setDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	o.setDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	o.setDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	o.setDuration("SERVER_SCRAPE_TIMEOUT", &cfg.Server.ScrapeTimeout)
	o.setInt64("SERVER_MAX_BODY_BYTES", &cfg.Server.MaxBodyBytes)
	o.setFloat("SERVER_LIMITS_SAMPLES_PER_SECOND", &cfg.Server.Limits.SamplesPerSecond)
	o.setInt("SERVER_LIMITS_BURST", &cfg.Server.Limits.Burst)
	o.setInt("SERVER_LIMITS_MAX_CONCURRENT", &cfg.Server.Limits.MaxConcurrent)

	// Relay overrides
	o.setInt("RELAY_QUEUE_WATERMARK", &cfg.Relay.QueueWatermark)

	// Collector overrides
	o.setString("COLLECTOR_NAMESPACE", &cfg.Collector.Namespace)
	o.setDuration("COLLECTOR_PROCESS_MAX_AGE", &cfg.Collector.ProcessMaxAge)

	// Reporter overrides
	if val, ok := lookup(envPrefix + "REPORTER_ENABLED"); ok && val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			o.fail("REPORTER_ENABLED", err)
		} else {
			cfg.Reporter.Enabled = &b
		}
	}
	o.setString("REPORTER_SCHEDULE", &cfg.Reporter.Schedule)
	o.setString("REPORTER_TYPE", &cfg.Reporter.Type)

	// Audit overrides
	o.setBool("AUDIT_ENABLED", &cfg.Audit.Enabled)
	o.setString("AUDIT_DRIVER", &cfg.Audit.Driver)
	o.setString("AUDIT_PATH", &cfg.Audit.Path)
	o.setDuration("AUDIT_RETENTION_MAX_AGE", &cfg.Audit.Retention.MaxAge)
	o.setInt64("AUDIT_RETENTION_MAX_RECORDS", &cfg.Audit.Retention.MaxRecords)

	// Telemetry overrides
	o.setString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	o.setString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	o.setBool("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)

	// TLS overrides
	o.setBool("SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	o.setString("SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	o.setString("SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	o.setString("SERVER_TLS_CLIENT_CA_FILE", &cfg.Server.TLS.ClientCAFile)

	// A single token from the environment is appended under the name "env".
	if tok, ok := o.lookup(envPrefix + "SERVER_AUTH_TOKEN"); ok && tok != "" {
		cfg.Server.Auth.Tokens = append(cfg.Server.Auth.Tokens, TokenConfig{Name: "env", Token: tok})
	}

	// Tracing overrides
	o.setBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	o.setString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	o.setString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	o.setFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	o.setBool("WATCH", &cfg.Watch)

	if len(o.errs) > 0 {
		return ValidationError{Errors: o.errs}
	}
	return nil
}

// overrider collects parse failures while applying overrides.
type overrider struct {
	lookup lookupFunc
	errs   []FieldError
}

func (o *overrider) fail(key string, err error) {
	o.errs = append(o.errs, FieldError{
		Field:   envPrefix + key,
		Message: err.Error(),
	})
}

func (o *overrider) setString(key string, dst *string) {
	if val, ok := o.lookup(envPrefix + key); ok && val != "" {
		*dst = val
	}
}

func (o *overrider) setDuration(key string, dst *time.Duration) {
	val, ok := o.lookup(envPrefix + key)
	if !ok || val == "" {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = d
}

func (o *overrider) setInt(key string, dst *int) {
	val, ok := o.lookup(envPrefix + key)
	if !ok || val == "" {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = i
}

func (o *overrider) setInt64(key string, dst *int64) {
	val, ok := o.lookup(envPrefix + key)
	if !ok || val == "" {
		return
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = i
}

func (o *overrider) setBool(key string, dst *bool) {
	val, ok := o.lookup(envPrefix + key)
	if !ok || val == "" {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = b
}

func (o *overrider) setFloat(key string, dst *float64) {
	val, ok := o.lookup(envPrefix + key)
	if !ok || val == "" {
		return
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = f
}
