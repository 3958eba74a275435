// Pulse is a metrics transport and aggregation service.
//
// Producers POST JSON samples to /send-metrics; pulse folds them into
// counters, gauges, summaries and histograms and serves the aggregate in
// Prometheus text format on /metrics.
//
// Usage:
//
//	# Start the collector with default configuration
//	pulse run
//
//	# Start with a configuration file
//	pulse run --config /etc/pulse/config.yaml
//
//	# Ship a file of newline-separated samples to a collector
//	pulse send --url http://127.0.0.1:9405 samples.json
//
//	# Check a configuration file
//	pulse validate --config /etc/pulse/config.yaml
//
//	# Show version information
//	pulse version
package main

func main() {
	Execute()
}
