// Package metrics exposes the self-observability metrics of the pulse
// pipeline on a Prometheus registry.
//
// # Overview
//
// These are metrics about pulse itself, separate from the aggregated
// application metrics the collector renders:
//   - Relay: pending depth, enqueues, evictions, worker restarts, drains
//   - Samples: accepted and rejected samples by kind
//   - HTTP: scrapes, scrape latency, ingested samples
//   - Go runtime and process statistics
//
// # Usage
//
//	recorder := metrics.NewRecorder("pulse", nil)
//
//	r, _ := relay.New(0, relay.Options[[]byte]{Observer: recorder.Relay})
//	c := collector.New(collector.Options{Observer: recorder.Samples})
//
//	http.Handle("/metrics/self", recorder.Handler())
package metrics
