package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler exposing the self metrics.
//
// Example:
//
//	recorder := metrics.NewRecorder("pulse", nil)
//	mux.Handle("/metrics/self", recorder.Handler())
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(
		r.registry,
		promhttp.HandlerOpts{
			// Error handling
			ErrorHandling: promhttp.ContinueOnError,

			// Also count scrapes of this endpoint
			Registry: r.registry,
		},
	)
}

// HandlerWithOptions returns an HTTP handler with custom options.
func (r *Recorder) HandlerWithOptions(opts promhttp.HandlerOpts) http.Handler {
	return promhttp.HandlerFor(r.registry, opts)
}
