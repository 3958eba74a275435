package instrument

import (
	"math"

	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

// Counter accumulates a monotonically increasing total per label set.
type Counter struct {
	meta
	values vec[float64]
}

// NewCounter creates an empty counter.
func NewCounter(name, help string) *Counter {
	return &Counter{meta: meta{name: name, help: help}}
}

// Observe adds amount to the total for labels, starting from zero. Negative
// and NaN amounts are ignored so the total never decreases.
func (c *Counter) Observe(amount float64, labels Labels) {
	if amount < 0 || math.IsNaN(amount) {
		return
	}
	c.values.upsert(labels, zero).value += amount
}

// Inc adds one to the total for labels.
func (c *Counter) Inc(labels Labels) {
	c.Observe(1, labels)
}

// Value returns the total for labels, zero if never observed.
func (c *Counter) Value(labels Labels) float64 {
	if s, ok := c.values.get(labels); ok {
		return s.value
	}
	return 0
}

func (c *Counter) Type() dto.MetricType { return dto.MetricType_COUNTER }

func (c *Counter) Len() int { return c.values.len() }

func (c *Counter) Family() *dto.MetricFamily {
	all := c.values.sorted()
	metrics := make([]*dto.Metric, 0, len(all))
	for _, s := range all {
		metrics = append(metrics, &dto.Metric{
			Label:   s.labels.pairs(),
			Counter: &dto.Counter{Value: proto.Float64(s.value)},
		})
	}
	return c.family(dto.MetricType_COUNTER, metrics)
}

func zero() float64 { return 0 }
