package cli

import (
	"bytes"
	"encoding/json"
	"testing"
)

// TestParseOutputFormat tests --output flag parsing.
func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "json", want: FormatJSON},
		{in: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

type summary struct {
	Accepted int `json:"accepted"`
}

func (s summary) String() string { return "accepted samples" }

// TestTextFormatter tests text rendering through fmt.Stringer.
func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, summary{Accepted: 3}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if buf.String() != "accepted samples\n" {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), "accepted samples\n")
	}
}

// TestJSONFormatter tests JSON rendering.
func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatJSON).FormatTo(&buf, summary{Accepted: 3}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var got summary
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("FormatTo() produced invalid JSON: %v", err)
	}
	if got.Accepted != 3 {
		t.Errorf("expected accepted 3, got %d", got.Accepted)
	}
}
