// Package tracing provides OpenTelemetry request tracing for pulse.
//
// Incoming W3C trace context (traceparent, tracestate) is extracted by
// Middleware, which opens one server span per request. The client injects
// the same headers so a producer's trace continues into the collector.
//
// Spans are exported over OTLP gRPC when enabled:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// When disabled, New returns a tracer backed by a noop provider; context
// is still propagated so request IDs and logs line up with upstream traces.
package tracing
