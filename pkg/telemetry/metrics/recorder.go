package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder owns the self-metrics registry and every metric group.
type Recorder struct {
	registry *prometheus.Registry

	// Relay implements relay.Observer.
	Relay *RelayMetrics

	// Samples implements collector.Observer.
	Samples *SampleMetrics

	HTTP *HTTPMetrics
}

// NewRecorder creates and registers all self metrics. If registry is nil a
// new one is created. The Go runtime and process collectors are registered
// alongside.
//
// Example:
//
//	recorder := metrics.NewRecorder("pulse", nil)
//	recorder.HTTP.ObserveScrape("ok", 12*time.Millisecond)
func NewRecorder(namespace string, registry *prometheus.Registry) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "pulse"
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	return &Recorder{
		registry: registry,
		Relay:    NewRelayMetrics(namespace, registry),
		Samples:  NewSampleMetrics(namespace, registry),
		HTTP:     NewHTTPMetrics(namespace, registry),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
