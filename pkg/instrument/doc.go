// Package instrument implements the labeled metric instruments the collector
// aggregates into: Counter, Gauge and Summary.
//
// # Overview
//
// Each instrument is identified by a name, a help text and a type, and owns
// one accumulated value per label set. Label sets are plain string maps; two
// sets address the same series when every key and value matches, regardless
// of insertion order.
//
// Instruments render through the Prometheus data model: Family returns a
// dto.MetricFamily, and WriteText encodes families in the text exposition
// format with expfmt. Series are emitted in a stable order sorted by their
// label key so two renders of the same state are byte-identical.
//
// # Usage
//
//	views := instrument.NewCounter("page_views", "Page views reported by the app")
//	views.Observe(1, instrument.Labels{"type": "anon", "device": "desktop"})
//
//	latency := instrument.NewSummary("http_duration_seconds", "Time spent in HTTP reqs in seconds")
//	latency.Observe(0.42, instrument.Labels{"controller": "list", "action": "latest"})
//
//	var buf bytes.Buffer
//	_ = instrument.WriteText(&buf, views, latency)
//
// # Concurrency
//
// Instruments are not safe for concurrent use. The collector serializes all
// updates and renders under its own lock.
package instrument
