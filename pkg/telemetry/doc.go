// Package telemetry groups the observability packages of pulse.
//
// # Components
//
//   - logging: slog setup with a runtime-adjustable level and request IDs
//   - metrics: Prometheus self metrics of the pipeline, served on /metrics/self
//   - tracing: OpenTelemetry request spans and W3C trace context propagation
//   - health: liveness and readiness probes
//
// The aggregated application metrics are not telemetry in this sense; they
// live in the collector package and are served on /metrics.
package telemetry
