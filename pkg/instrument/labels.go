package instrument

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

// Labels is a label set: label name to label value.
type Labels map[string]string

// LabelsFrom converts loosely typed labels, as they arrive in samples, into a
// label set. Booleans render as "true"/"false" and numbers in their shortest
// decimal form. Nil values become empty strings.
func LabelsFrom(m map[string]any) Labels {
	if len(m) == 0 {
		return nil
	}
	out := make(Labels, len(m))
	for k, v := range m {
		out[k] = labelValue(v)
	}
	return out
}

func labelValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// With returns a copy of l with extra applied on top. Keys in extra win.
func (l Labels) With(extra Labels) Labels {
	out := make(Labels, len(l)+len(extra))
	maps.Copy(out, l)
	maps.Copy(out, extra)
	return out
}

// Key returns a canonical string identifying the label set.
func (l Labels) Key() string {
	if len(l) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(l)) {
		b.WriteString(k)
		b.WriteByte(0xfe)
		b.WriteString(l[k])
		b.WriteByte(0xff)
	}
	return b.String()
}

// pairs returns the label set as dto label pairs sorted by name.
func (l Labels) pairs() []*dto.LabelPair {
	if len(l) == 0 {
		return nil
	}
	out := make([]*dto.LabelPair, 0, len(l))
	for _, k := range slices.Sorted(maps.Keys(l)) {
		out = append(out, &dto.LabelPair{
			Name:  proto.String(k),
			Value: proto.String(l[k]),
		})
	}
	return out
}

// series is one label set's state inside an instrument.
type series[V any] struct {
	labels Labels
	value  V
}

// vec stores per-label-set state keyed by Labels.Key.
type vec[V any] struct {
	index map[string]*series[V]
}

func (v *vec[V]) get(l Labels) (*series[V], bool) {
	s, ok := v.index[l.Key()]
	return s, ok
}

// upsert returns the series for l, creating it with init if absent.
func (v *vec[V]) upsert(l Labels, init func() V) *series[V] {
	key := l.Key()
	if s, ok := v.index[key]; ok {
		return s
	}
	if v.index == nil {
		v.index = make(map[string]*series[V])
	}
	s := &series[V]{labels: l.With(nil), value: init()}
	v.index[key] = s
	return s
}

func (v *vec[V]) reset() {
	clear(v.index)
}

func (v *vec[V]) len() int {
	return len(v.index)
}

// sorted returns every series ordered by label key.
func (v *vec[V]) sorted() []*series[V] {
	out := make([]*series[V], 0, len(v.index))
	for _, k := range slices.Sorted(maps.Keys(v.index)) {
		out = append(out, v.index[k])
	}
	return out
}
