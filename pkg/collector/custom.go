package collector

import (
	"fmt"

	"mercator-hq/pulse/pkg/instrument"
	"mercator-hq/pulse/pkg/sample"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/model"
)

const (
	customCounter = "Counter"
	customGauge   = "Gauge"
)

func (c *Collector) observeCustom(s *sample.Custom) error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCustom)
	}
	if !model.IsValidLegacyMetricName(s.Name) {
		return fmt.Errorf("%w: invalid name %q", ErrInvalidCustom, s.Name)
	}

	var want dto.MetricType
	switch s.Type {
	case customCounter:
		want = dto.MetricType_COUNTER
	case customGauge:
		want = dto.MetricType_GAUGE
	default:
		return fmt.Errorf("%w: %q for metric %q", ErrUnknownCustomType, s.Type, s.Name)
	}

	if _, ok := c.builtin[s.Name]; ok {
		return fmt.Errorf("%w: %q is a built-in metric", ErrTypeConflict, s.Name)
	}
	if want == dto.MetricType_GAUGE && s.Value == nil {
		return fmt.Errorf("%w: gauge %q without value", ErrInvalidCustom, s.Name)
	}

	inst, ok := c.custom.get(s.Name)
	if !ok {
		inst = newCustom(s, want)
		c.custom.add(inst)
	} else if inst.Type() != want {
		return fmt.Errorf("%w: %q is a %s, got %s",
			ErrTypeConflict, s.Name, inst.Type(), want)
	}

	labels := instrument.LabelsFrom(s.Labels)
	switch m := inst.(type) {
	case *instrument.Counter:
		amount := 1.0
		if s.Value != nil {
			amount = *s.Value
		}
		m.Observe(amount, labels)
	case *instrument.Gauge:
		m.Observe(*s.Value, labels)
	}
	return nil
}

func newCustom(s *sample.Custom, t dto.MetricType) instrument.Instrument {
	if t == dto.MetricType_COUNTER {
		return instrument.NewCounter(s.Name, s.Description)
	}
	return instrument.NewGauge(s.Name, s.Description)
}
