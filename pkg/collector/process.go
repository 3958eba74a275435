package collector

import (
	"strconv"
	"time"

	"mercator-hq/pulse/pkg/instrument"
	"mercator-hq/pulse/pkg/sample"
)

type processEntry struct {
	sample *sample.Process
	at     time.Time
}

type fieldKind int

const (
	gaugeField fieldKind = iota
	counterField
)

// processField maps one Process reading to the metric it renders as.
type processField struct {
	name string
	help string
	kind fieldKind
	get  func(*sample.Process) *sample.Reading
}

var processFields = []processField{
	{"heap_free_slots", "Free heap slots", gaugeField, func(p *sample.Process) *sample.Reading { return p.HeapFreeSlots }},
	{"heap_live_slots", "Used heap slots", gaugeField, func(p *sample.Process) *sample.Reading { return p.HeapLiveSlots }},
	{"v8_heap_size", "Total JavaScript V8 heap size (bytes)", gaugeField, func(p *sample.Process) *sample.Reading { return p.V8HeapSize }},
	{"v8_used_heap_size", "Total used JavaScript V8 heap size (bytes)", gaugeField, func(p *sample.Process) *sample.Reading { return p.V8UsedHeapSize }},
	{"v8_physical_size", "Physical size consumed by V8 heaps", gaugeField, func(p *sample.Process) *sample.Reading { return p.V8PhysicalSize }},
	{"v8_heap_count", "Number of V8 contexts running", gaugeField, func(p *sample.Process) *sample.Reading { return p.V8HeapCount }},
	{"rss", "Total RSS used by process", gaugeField, func(p *sample.Process) *sample.Reading { return p.RSS }},
	{"thread_count", "Total number of active threads per process", gaugeField, func(p *sample.Process) *sample.Reading { return p.ThreadCount }},
	{"deferred_jobs_queued", "Number of jobs queued in the deferred job queue", gaugeField, func(p *sample.Process) *sample.Reading { return p.DeferredJobsQueued }},
	{"active_record_connections_count", "Total number of connections in the database connection pools", gaugeField, func(p *sample.Process) *sample.Reading { return p.ActiveRecordConns }},
	{"readonly", "Current per-site values for each readonly key", gaugeField, func(p *sample.Process) *sample.Reading { return p.Readonly }},
	{"last_readonly_seconds", "Local per-site per-process last readonly timestamps", gaugeField, func(p *sample.Process) *sample.Reading { return p.LastReadonlySeconds }},
	{"major_gc_count", "Major GC operations by process", counterField, func(p *sample.Process) *sample.Reading { return p.MajorGCCount }},
	{"minor_gc_count", "Minor GC operations by process", counterField, func(p *sample.Process) *sample.Reading { return p.MinorGCCount }},
	{"total_allocated_objects", "Total number of allocated objects by process", counterField, func(p *sample.Process) *sample.Reading { return p.TotalAllocatedObjects }},
	{"job_failures", "Job failures by family and job class", counterField, func(p *sample.Process) *sample.Reading { return p.JobFailures }},
}

// observeProcess replaces the snapshot for s.PID and expires stale ones.
func (c *Collector) observeProcess(s *sample.Process) {
	now := c.now()

	kept := c.processes[:0]
	for _, e := range c.processes {
		if e.sample.PID == s.PID || now.Sub(e.at) > c.maxAge {
			continue
		}
		kept = append(kept, e)
	}
	clear(c.processes[len(kept):])
	c.processes = append(kept, processEntry{sample: s, at: now})
}

// processInstruments rebuilds the process families from the live set.
func (c *Collector) processInstruments() []instrument.Instrument {
	if len(c.processes) == 0 {
		return nil
	}

	out := make([]instrument.Instrument, 0, len(processFields))
	for _, f := range processFields {
		name := c.metricName(f.name)

		var observe func(float64, instrument.Labels)
		var inst instrument.Instrument
		switch f.kind {
		case counterField:
			counter := instrument.NewCounter(name, f.help)
			observe, inst = counter.Observe, counter
		default:
			gauge := instrument.NewGauge(name, f.help)
			observe, inst = gauge.Observe, gauge
		}

		for _, e := range c.processes {
			r := f.get(e.sample)
			if r == nil {
				continue
			}
			base := instrument.Labels{"pid": strconv.Itoa(e.sample.PID)}
			if e.sample.Type != "" {
				base["type"] = e.sample.Type
			}
			observeReading(r, base, observe)
		}
		out = append(out, inst)
	}
	return out
}

// observeReading feeds a scalar or series reading into observe. Points with
// no value are skipped.
func observeReading(r *sample.Reading, base instrument.Labels, observe func(float64, instrument.Labels)) {
	if r.Scalar != nil {
		observe(*r.Scalar, base)
		return
	}
	for _, p := range r.Points {
		if p.Value == nil {
			continue
		}
		observe(*p.Value, base.With(instrument.LabelsFrom(p.Labels)))
	}
}
