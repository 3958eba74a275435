// Package health provides liveness, readiness and version endpoints.
//
// # Endpoints
//
//   - /health: Liveness probe, always ok while the process serves HTTP
//   - /ready: Readiness probe, runs every registered check
//   - /version: Build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("relay", func(ctx context.Context) error {
//	    return pipeline.Check(ctx)
//	})
//
//	mux := http.NewServeMux()
//	health.Mount(mux, checker, health.BuildInfo{Version: "1.0.0"})
//
// Readiness returns 503 when any check fails or times out, and after
// SetDraining(true) has been called during shutdown.
package health
