// Package collector classifies decoded samples, folds them into labeled
// instruments and renders the result as Prometheus exposition text.
//
// A Collector owns all aggregation state. Process samples are kept as the
// latest snapshot per pid and expire after ProcessMaxAge; the process
// instruments are rebuilt from that set on every render. Web, Job and Global
// samples update fixed instrument families, and Custom samples create
// counters or gauges on first use.
//
// Render output is grouped process, web, job, global, custom, with instruments
// separated by blank lines and series sorted by label set.
package collector
