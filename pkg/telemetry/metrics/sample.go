package metrics

import (
	"mercator-hq/pulse/pkg/sample"

	"github.com/prometheus/client_golang/prometheus"
)

// SampleMetrics tracks classification outcomes in the collector.
type SampleMetrics struct {
	accepted *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewSampleMetrics creates and registers sample metrics with the provided registry.
func NewSampleMetrics(namespace string, registry *prometheus.Registry) *SampleMetrics {
	sm := &SampleMetrics{
		accepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "samples_accepted_total",
				Help:      "Total number of samples folded into instruments",
			},
			[]string{"kind"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "samples_rejected_total",
				Help:      "Total number of samples rejected by the collector",
			},
			[]string{"kind", "reason"},
		),
	}

	registry.MustRegister(sm.accepted, sm.rejected)
	return sm
}

func (sm *SampleMetrics) SampleAccepted(kind sample.Kind) {
	sm.accepted.WithLabelValues(string(kind)).Inc()
}

func (sm *SampleMetrics) SampleRejected(kind sample.Kind, reason string) {
	k := string(kind)
	if k == "" {
		k = "unknown"
	}
	sm.rejected.WithLabelValues(k, reason).Inc()
}
