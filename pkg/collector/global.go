package collector

import (
	"mercator-hq/pulse/pkg/instrument"
	"mercator-hq/pulse/pkg/sample"
)

type globalField struct {
	name string
	help string
	get  func(*sample.Global) *sample.Reading
}

var globalFields = []globalField{
	{"postgres_readonly_mode", "Indicates whether the site is in readonly mode due to the primary database being unavailable", func(g *sample.Global) *sample.Reading { return g.PostgresReadonlyMode }},
	{"transient_readonly_mode", "Indicates whether a transient readonly mode is enabled", func(g *sample.Global) *sample.Reading { return g.TransientReadonlyMode }},
	{"redis_master_available", "Whether or not we have an active connection to the master Redis", func(g *sample.Global) *sample.Reading { return g.RedisMasterAvailable }},
	{"redis_slave_available", "Whether or not we have an active connection to the Redis slave", func(g *sample.Global) *sample.Reading { return g.RedisSlaveAvailable }},
	{"redis_primary_available", "Whether or not we have an active connection to the primary Redis", func(g *sample.Global) *sample.Reading { return g.RedisPrimaryAvailable }},
	{"redis_replica_available", "Whether or not we have an active connection to the Redis replica", func(g *sample.Global) *sample.Reading { return g.RedisReplicaAvailable }},
	{"postgres_master_available", "Whether or not we have an active connection to the master PostgreSQL", func(g *sample.Global) *sample.Reading { return g.PostgresMasterAvailable }},
	{"postgres_primary_available", "Whether or not we have an active connection to the primary PostgreSQL", func(g *sample.Global) *sample.Reading { return g.PostgresPrimaryAvailable }},
	{"postgres_replica_available", "Whether or not we have an active connection to the replica PostgreSQL", func(g *sample.Global) *sample.Reading { return g.PostgresReplicaAvailable }},
	{"active_app_reqs", "Number of active web requests in progress", func(g *sample.Global) *sample.Reading { return g.ActiveAppReqs }},
	{"queued_app_reqs", "Number of queued web requests", func(g *sample.Global) *sample.Reading { return g.QueuedAppReqs }},
	{"sidekiq_jobs_enqueued", "Number of jobs queued in the Sidekiq worker processes", func(g *sample.Global) *sample.Reading { return g.SidekiqJobsEnqueued }},
	{"sidekiq_processes", "Number of Sidekiq job processors", func(g *sample.Global) *sample.Reading { return g.SidekiqProcesses }},
	{"sidekiq_paused", "Whether or not Sidekiq is paused", func(g *sample.Global) *sample.Reading { return g.SidekiqPaused }},
	{"sidekiq_workers", "Total number of active sidekiq workers", func(g *sample.Global) *sample.Reading { return g.SidekiqWorkers }},
	{"sidekiq_jobs_stuck", "Number of sidekiq jobs which have been running for more than the allowed duration", func(g *sample.Global) *sample.Reading { return g.SidekiqJobsStuck }},
	{"scheduled_jobs_stuck", "Number of scheduled jobs which have been running for more than their expected duration", func(g *sample.Global) *sample.Reading { return g.ScheduledJobsStuck }},
	{"sidekiq_queue_latency_seconds", "Latency of the sidekiq queue in seconds", func(g *sample.Global) *sample.Reading { return g.SidekiqQueueLatencySeconds }},
	{"missing_s3_uploads", "Number of missing uploads in all configured S3 buckets", func(g *sample.Global) *sample.Reading { return g.MissingS3Uploads }},
	{"version_info", "Labelled with the running revision and version", func(g *sample.Global) *sample.Reading { return g.VersionInfo }},
	{"readonly_sites", "Count of sites currently in readonly mode, grouped by the relevant key", func(g *sample.Global) *sample.Reading { return g.ReadonlySites }},
	{"postgres_highest_sequence", "The highest last_value from the pg_sequences table", func(g *sample.Global) *sample.Reading { return g.PostgresHighestSequence }},
	{"tmp_dir_available_bytes", "Available space in the temporary directory in bytes", func(g *sample.Global) *sample.Reading { return g.TmpDirAvailableBytes }},
}

type globalMetrics struct {
	gauges []*instrument.Gauge
}

func newGlobalMetrics(name func(string) string) *globalMetrics {
	m := &globalMetrics{gauges: make([]*instrument.Gauge, len(globalFields))}
	for i, f := range globalFields {
		m.gauges[i] = instrument.NewGauge(name(f.name), f.help)
	}
	return m
}

func (m *globalMetrics) all() []instrument.Instrument {
	out := make([]instrument.Instrument, len(m.gauges))
	for i, g := range m.gauges {
		out[i] = g
	}
	return out
}

// observe resets every global gauge and refills it from s, so series absent
// from the latest collection cycle disappear.
func (m *globalMetrics) observe(s *sample.Global) {
	for i, f := range globalFields {
		g := m.gauges[i]
		g.Reset()
		if r := f.get(s); r != nil {
			observeReading(r, nil, g.Observe)
		}
	}
}
