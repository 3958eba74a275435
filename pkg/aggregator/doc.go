// Package aggregator puts a relay in front of a collector.
//
// Producers hand raw JSON samples to Enqueue from any goroutine. A single
// consumer worker decodes and folds them into the collector, and a scrape
// drains the relay to obtain the exposition text rendered by that worker.
// The relay retains nothing: every sample is consumed by the collector as it
// arrives and the drain reply carries only the rendered lines.
package aggregator
