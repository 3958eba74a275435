package collector

import (
	"strconv"

	"mercator-hq/pulse/pkg/instrument"
	"mercator-hq/pulse/pkg/sample"
)

type jobFamily struct {
	duration *instrument.Counter
	count    *instrument.Counter
}

type jobMetrics struct {
	scheduled jobFamily
	sidekiq   jobFamily
}

func newJobMetrics(name func(string) string) *jobMetrics {
	return &jobMetrics{
		scheduled: jobFamily{
			duration: instrument.NewCounter(name("scheduled_job_duration_seconds"), "Total time spent in scheduled jobs"),
			count:    instrument.NewCounter(name("scheduled_job_count"), "Total number of scheduled jobs executed"),
		},
		sidekiq: jobFamily{
			duration: instrument.NewCounter(name("sidekiq_job_duration_seconds"), "Total time spent in sidekiq jobs"),
			count:    instrument.NewCounter(name("sidekiq_job_count"), "Total number of sidekiq jobs executed"),
		},
	}
}

func (m *jobMetrics) all() []instrument.Instrument {
	return []instrument.Instrument{
		m.scheduled.duration, m.scheduled.count,
		m.sidekiq.duration, m.sidekiq.count,
	}
}

func (m *jobMetrics) observe(j *sample.Job) {
	family := m.sidekiq
	if j.Scheduled {
		family = m.scheduled
	}

	labels := instrument.Labels{
		"job_name": j.JobName,
		"success":  strconv.FormatBool(j.Success),
	}

	count := 1.0
	if j.Count != nil {
		count = *j.Count
	}
	family.duration.Observe(j.Duration, labels)
	family.count.Observe(count, labels)
}
