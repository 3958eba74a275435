package sample

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// typeKey is the JSON member holding the sample kind.
const typeKey = "_type"

var (
	// ErrMissingKind is returned when a payload has no "_type" member.
	ErrMissingKind = errors.New("sample kind missing")

	// ErrUnknownKind is returned when "_type" names no known kind.
	ErrUnknownKind = errors.New("unknown sample kind")
)

// DecodeError describes a payload that could not be turned into a Sample.
type DecodeError struct {
	// Kind is the declared kind, empty when it could not be read.
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("decode sample: %v", e.Err)
	}
	return fmt.Sprintf("decode %s sample: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// New returns an empty sample of the given kind.
func New(kind Kind) (Sample, error) {
	switch kind {
	case KindProcess:
		return &Process{}, nil
	case KindWeb:
		return &Web{}, nil
	case KindJob:
		return &Job{}, nil
	case KindGlobal:
		return &Global{}, nil
	case KindCustom:
		return &Custom{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Decode parses a JSON payload into a typed Sample. Errors are always
// *DecodeError and wrap ErrMissingKind, ErrUnknownKind or the JSON error.
func Decode(data []byte) (Sample, error) {
	var head struct {
		Type *string `json:"_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if head.Type == nil || *head.Type == "" {
		return nil, &DecodeError{Err: ErrMissingKind}
	}

	kind := Kind(*head.Type)
	s, err := New(kind)
	if err != nil {
		return nil, &DecodeError{Kind: kind, Err: err}
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, &DecodeError{Kind: kind, Err: err}
	}
	return s, nil
}

// Encode serializes s as a JSON object with its "_type" member first.
func Encode(s Sample) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode sample: nil sample")
	}
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode %s sample: %w", s.Kind(), err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + 24)
	buf.WriteString(`{"` + typeKey + `":`)
	kind, _ := json.Marshal(string(s.Kind()))
	buf.Write(kind)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
