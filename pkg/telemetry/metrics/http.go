package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks the scrape and ingestion endpoints.
type HTTPMetrics struct {
	scrapes        *prometheus.CounterVec
	scrapeDuration prometheus.Histogram
	ingested       *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers HTTP metrics with the provided registry.
func NewHTTPMetrics(namespace string, registry *prometheus.Registry) *HTTPMetrics {
	hm := &HTTPMetrics{
		scrapes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "scrapes_total",
				Help:      "Total number of metrics scrapes by outcome",
			},
			[]string{"outcome"},
		),
		scrapeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "scrape_duration_seconds",
			Help:      "Time taken to drain and render the metrics text",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ingested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "ingested_samples_total",
				Help:      "Total number of samples received over HTTP by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(hm.scrapes, hm.scrapeDuration, hm.ingested)
	return hm
}

// ObserveScrape records one scrape with outcome "ok", "timeout" or "error".
func (hm *HTTPMetrics) ObserveScrape(outcome string, d time.Duration) {
	hm.scrapes.WithLabelValues(outcome).Inc()
	hm.scrapeDuration.Observe(d.Seconds())
}

// AddIngested records n samples received with outcome "accepted" or
// "rejected".
func (hm *HTTPMetrics) AddIngested(outcome string, n int) {
	if n <= 0 {
		return
	}
	hm.ingested.WithLabelValues(outcome).Add(float64(n))
}
