package sample

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Point is one labeled value of a multi-series Reading. A nil Value marks a
// series the producer knows about but has nothing to report for; it yields
// no output.
type Point struct {
	Labels map[string]any `json:"labels,omitempty"`
	Value  *float64       `json:"value"`
}

// Reading is either a single number or a list of labeled points.
type Reading struct {
	Scalar *float64
	Points []Point
}

// Scalar returns a single-valued reading.
func Scalar(v float64) *Reading {
	return &Reading{Scalar: &v}
}

// Series returns a multi-valued reading.
func Series(points ...Point) *Reading {
	return &Reading{Points: points}
}

// At builds a Point from a value and its labels.
func At(v float64, labels map[string]any) Point {
	return Point{Labels: labels, Value: &v}
}

// IsSeries reports whether r holds labeled points rather than a scalar.
func (r *Reading) IsSeries() bool {
	return r != nil && r.Scalar == nil && r.Points != nil
}

// MarshalJSON encodes a scalar as a JSON number and a series as an array.
func (r Reading) MarshalJSON() ([]byte, error) {
	if r.Scalar != nil {
		return json.Marshal(*r.Scalar)
	}
	if r.Points != nil {
		return json.Marshal(r.Points)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a number, a boolean (true=1, false=0), null, or an
// array of points.
func (r *Reading) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty reading")
	}

	*r = Reading{}

	switch data[0] {
	case 'n':
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("reading: %w", err)
		}
		v := 0.0
		if b {
			v = 1
		}
		r.Scalar = &v
		return nil
	case '[':
		points := []Point{}
		if err := json.Unmarshal(data, &points); err != nil {
			return fmt.Errorf("reading series: %w", err)
		}
		r.Points = points
		return nil
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("reading: expected number or series, got %s", truncate(data, 32))
		}
		r.Scalar = &v
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
