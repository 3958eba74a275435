// Package server provides the HTTP front of pulse.
//
// # Routes
//
// The server exposes the following HTTP endpoints:
//
//   - GET /metrics - Exposition text of every aggregated sample
//   - GET /metrics/self - The pipeline's own metrics (queue depth, restarts, scrapes)
//   - POST /send-metrics - Sample ingestion, a stream of JSON objects, optionally gzipped
//   - GET /health - Liveness probe (always returns 200)
//   - GET /ready - Readiness probe (aggregator open and able to render)
//   - GET /version - Build information
//
// Every other path answers 404.
//
// # Scrapes
//
// A scrape drains the aggregator with the configured scrape timeout. The
// response always starts with a collector_working gauge, 1 when the
// aggregator answered in time and 0 otherwise, so a stuck collector is
// visible to Prometheus instead of failing the scrape.
//
// # Middleware Chain
//
// Requests pass through the following middleware (innermost to outermost):
//  1. Logging: Logs request/response details with the request ID
//  2. Tracing: Opens a server span, continuing any incoming traceparent (when a tracer is set)
//  3. RequestID: Reuses X-Request-ID or generates a UUID
//  4. Recovery: Recovers from panics and returns 500 error
//
// # Security
//
// With Options.TLSConfig set the listener speaks TLS only. With
// Options.Tokens set, /send-metrics requires a producer token and answers
// 401 without one; /metrics is protected too when auth.protect_metrics is
// enabled. Probes and /version stay open.
//
// With Options.Limiter set, each sample takes a token from its producer's
// bucket; a refused sample ends the request with 429, a Retry-After header
// and the accepted count. Samples before it stay enqueued.
//
// # Graceful Shutdown
//
// Start blocks until its context is canceled, then shuts down within the
// configured shutdown timeout. Readiness turns to draining first so load
// balancers stop routing before connections close.
package server
