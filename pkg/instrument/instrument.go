package instrument

import (
	dto "github.com/prometheus/client_model/go"
)

// Instrument is a named metric holding one value per label set.
type Instrument interface {
	Name() string
	Help() string
	Type() dto.MetricType

	// Family snapshots the instrument as a Prometheus metric family. The
	// family has no metrics when nothing has been observed.
	Family() *dto.MetricFamily

	// Len returns the number of label sets currently held.
	Len() int
}

type meta struct {
	name string
	help string
}

func (m meta) Name() string { return m.name }
func (m meta) Help() string { return m.help }

func (m meta) family(t dto.MetricType, metrics []*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   &m.name,
		Help:   &m.help,
		Type:   t.Enum(),
		Metric: metrics,
	}
}
