package instrument

import (
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

// Gauge holds the last observed value per label set.
type Gauge struct {
	meta
	values vec[float64]
}

// NewGauge creates an empty gauge.
func NewGauge(name, help string) *Gauge {
	return &Gauge{meta: meta{name: name, help: help}}
}

// Observe overwrites the value for labels.
func (g *Gauge) Observe(value float64, labels Labels) {
	g.values.upsert(labels, zero).value = value
}

// Reset drops every label set. Series not observed again after a reset do
// not render.
func (g *Gauge) Reset() {
	g.values.reset()
}

// Value returns the value for labels and whether it is set.
func (g *Gauge) Value(labels Labels) (float64, bool) {
	if s, ok := g.values.get(labels); ok {
		return s.value, true
	}
	return 0, false
}

func (g *Gauge) Type() dto.MetricType { return dto.MetricType_GAUGE }

func (g *Gauge) Len() int { return g.values.len() }

func (g *Gauge) Family() *dto.MetricFamily {
	all := g.values.sorted()
	metrics := make([]*dto.Metric, 0, len(all))
	for _, s := range all {
		metrics = append(metrics, &dto.Metric{
			Label: s.labels.pairs(),
			Gauge: &dto.Gauge{Value: proto.Float64(s.value)},
		})
	}
	return g.family(dto.MetricType_GAUGE, metrics)
}
