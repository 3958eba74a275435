package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks the bounded relay between producers and the collector.
//
// Metrics:
//   - pulse_relay_pending_items: Items enqueued but not yet consumed
//   - pulse_relay_enqueued_total: Items handed to the relay
//   - pulse_relay_evicted_total: Items dropped from the retained window
//   - pulse_relay_watermark_exceeded_total: Enqueues above the pending watermark
//   - pulse_relay_worker_restarts_total: Worker panics recovered, by worker
//   - pulse_relay_drains_total: Drain requests served
//   - pulse_relay_drained_items_total: Items returned by drains
type RelayMetrics struct {
	pending           prometheus.Gauge
	enqueued          prometheus.Counter
	evicted           prometheus.Counter
	watermarkExceeded prometheus.Counter
	restarts          *prometheus.CounterVec
	drains            prometheus.Counter
	drainedItems      prometheus.Counter
}

// NewRelayMetrics creates and registers relay metrics with the provided registry.
func NewRelayMetrics(namespace string, registry *prometheus.Registry) *RelayMetrics {
	rm := &RelayMetrics{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "pending_items",
			Help:      "Items enqueued but not yet handed to the consumer",
		}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "enqueued_total",
			Help:      "Total number of items handed to the relay",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "evicted_total",
			Help:      "Total number of items dropped from the retained window",
		}),
		watermarkExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "watermark_exceeded_total",
			Help:      "Total number of enqueues while the pending queue was above its watermark",
		}),
		restarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "worker_restarts_total",
				Help:      "Total number of relay worker restarts after a panic",
			},
			[]string{"worker"},
		),
		drains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "drains_total",
			Help:      "Total number of drain requests served",
		}),
		drainedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "drained_items_total",
			Help:      "Total number of items returned by drains",
		}),
	}

	registry.MustRegister(
		rm.pending,
		rm.enqueued,
		rm.evicted,
		rm.watermarkExceeded,
		rm.restarts,
		rm.drains,
		rm.drainedItems,
	)

	return rm
}

// ItemEnqueued records an enqueue and the resulting pending depth.
func (rm *RelayMetrics) ItemEnqueued(depth int) {
	rm.enqueued.Inc()
	rm.pending.Set(float64(depth))
}

// ItemEvicted records one eviction from the retained window.
func (rm *RelayMetrics) ItemEvicted() {
	rm.evicted.Inc()
}

// WorkerRestarted records a recovered worker panic.
func (rm *RelayMetrics) WorkerRestarted(worker string) {
	rm.restarts.WithLabelValues(worker).Inc()
}

// WatermarkExceeded records an enqueue above the watermark.
func (rm *RelayMetrics) WatermarkExceeded(depth int) {
	rm.watermarkExceeded.Inc()
	rm.pending.Set(float64(depth))
}

// DrainServed records a drain answered with count items.
func (rm *RelayMetrics) DrainServed(count int) {
	rm.drains.Inc()
	rm.drainedItems.Add(float64(count))
}

// SetPending overwrites the pending depth gauge.
func (rm *RelayMetrics) SetPending(depth int) {
	rm.pending.Set(float64(depth))
}
