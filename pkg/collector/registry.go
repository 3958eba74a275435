package collector

import "mercator-hq/pulse/pkg/instrument"

// registry holds instruments by name in creation order.
type registry struct {
	order  []instrument.Instrument
	byName map[string]instrument.Instrument
}

func newRegistry() *registry {
	return &registry{byName: make(map[string]instrument.Instrument)}
}

func (r *registry) get(name string) (instrument.Instrument, bool) {
	i, ok := r.byName[name]
	return i, ok
}

func (r *registry) add(i instrument.Instrument) {
	r.order = append(r.order, i)
	r.byName[i.Name()] = i
}

func (r *registry) all() []instrument.Instrument {
	return r.order
}
