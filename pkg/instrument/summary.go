package instrument

import (
	"github.com/beorn7/perks/quantile"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

// Quantiles are the ranks every Summary reports, in render order.
var Quantiles = []float64{0.99, 0.9, 0.5, 0.1, 0.01}

// Estimator is a streaming quantile estimator backing one Summary series.
type Estimator interface {
	Observe(v float64)
	Query(q float64) float64
	Sum() float64
	Count() uint64
}

// objectives maps each reported quantile to its allowed rank error.
var objectives = map[float64]float64{
	0.99: 0.001,
	0.9:  0.01,
	0.5:  0.05,
	0.1:  0.01,
	0.01: 0.001,
}

// NewEstimator returns the default estimator, a biased quantile stream
// targeted at Quantiles.
func NewEstimator() Estimator {
	return &targeted{stream: quantile.NewTargeted(objectives)}
}

type targeted struct {
	stream *quantile.Stream
	sum    float64
	count  uint64
}

func (t *targeted) Observe(v float64) {
	t.stream.Insert(v)
	t.sum += v
	t.count++
}

func (t *targeted) Query(q float64) float64 { return t.stream.Query(q) }
func (t *targeted) Sum() float64             { return t.sum }
func (t *targeted) Count() uint64            { return t.count }

// SummaryOption configures a Summary.
type SummaryOption func(*Summary)

// WithEstimator replaces the estimator constructor used for new series.
func WithEstimator(fn func() Estimator) SummaryOption {
	return func(s *Summary) {
		if fn != nil {
			s.newEstimator = fn
		}
	}
}

// Summary tracks the distribution of observed values per label set.
type Summary struct {
	meta
	values       vec[Estimator]
	newEstimator func() Estimator
}

// NewSummary creates an empty summary.
func NewSummary(name, help string, opts ...SummaryOption) *Summary {
	s := &Summary{
		meta:         meta{name: name, help: help},
		newEstimator: NewEstimator,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe feeds v into the estimator for labels.
func (s *Summary) Observe(v float64, labels Labels) {
	s.values.upsert(labels, s.newEstimator).value.Observe(v)
}

// Estimator returns the estimator for labels, nil if never observed.
func (s *Summary) Estimator(labels Labels) Estimator {
	if e, ok := s.values.get(labels); ok {
		return e.value
	}
	return nil
}

func (s *Summary) Type() dto.MetricType { return dto.MetricType_SUMMARY }

func (s *Summary) Len() int { return s.values.len() }

func (s *Summary) Family() *dto.MetricFamily {
	all := s.values.sorted()
	metrics := make([]*dto.Metric, 0, len(all))
	for _, e := range all {
		qs := make([]*dto.Quantile, 0, len(Quantiles))
		for _, q := range Quantiles {
			qs = append(qs, &dto.Quantile{
				Quantile: proto.Float64(q),
				Value:    proto.Float64(e.value.Query(q)),
			})
		}
		metrics = append(metrics, &dto.Metric{
			Label: e.labels.pairs(),
			Summary: &dto.Summary{
				SampleCount: proto.Uint64(e.value.Count()),
				SampleSum:   proto.Float64(e.value.Sum()),
				Quantile:    qs,
			},
		})
	}
	return s.family(dto.MetricType_SUMMARY, metrics)
}
