package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/pulse/pkg/audit"
)

func backends(t *testing.T) map[string]audit.Storage {
	t.Helper()
	sqlite, err := NewSQLiteStorage(Config{Path: filepath.Join(t.TempDir(), "audit.db"), WALMode: true}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]audit.Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

var base = time.Unix(1_700_000_000, 0)

func seed(t *testing.T, s audit.Storage) {
	t.Helper()
	records := []*audit.Record{
		{ID: "1", Producer: "web", Time: base, Status: 200, Accepted: 10, Duration: time.Millisecond},
		{ID: "2", Producer: "jobs", Time: base.Add(time.Minute), Status: 400, Accepted: 2, Error: "sample 3: unknown"},
		{ID: "3", Producer: "web", Time: base.Add(2 * time.Minute), Status: 200, Accepted: 5, BodyHash: "abc"},
		{ID: "4", Producer: "web", Time: base.Add(3 * time.Minute), Status: 429, Accepted: 0},
	}
	for _, r := range records {
		if err := s.Store(context.Background(), r); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}
}

func ids(records []*audit.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

// TestStorage_Query tests filtering, ordering and paging on every backend.
func TestStorage_Query(t *testing.T) {
	start := base.Add(time.Minute)
	end := base.Add(3 * time.Minute)

	tests := []struct {
		name  string
		query audit.Query
		want  []string
	}{
		{name: "all newest first", want: []string{"4", "3", "2", "1"}},
		{name: "producer", query: audit.Query{Producer: "web"}, want: []string{"4", "3", "1"}},
		{name: "time range", query: audit.Query{StartTime: &start, EndTime: &end}, want: []string{"3", "2"}},
		{name: "failed only", query: audit.Query{FailedOnly: true}, want: []string{"4", "2"}},
		{name: "paging", query: audit.Query{Limit: 2, Offset: 1}, want: []string{"3", "2"}},
		{name: "offset past end", query: audit.Query{Offset: 10}, want: []string{}},
	}

	for name, s := range backends(t) {
		seed(t, s)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				got, err := s.Query(context.Background(), &tt.query)
				if err != nil {
					t.Fatalf("Query() error = %v", err)
				}
				if g := ids(got); !equal(g, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, g)
				}
			})
		}
	}
}

// TestStorage_RoundTrip tests that every field survives storage.
func TestStorage_RoundTrip(t *testing.T) {
	want := audit.Record{
		ID: "x", RequestID: "req-1", Time: base, Producer: "web", RemoteAddr: "10.0.0.1",
		Status: 200, Accepted: 7, Bytes: 512, ContentEncoding: "gzip", BodyHash: "deadbeef",
		Duration: 1500 * time.Microsecond, Error: "",
	}
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Store(context.Background(), &want); err != nil {
				t.Fatalf("Store() error = %v", err)
			}
			got, err := s.Query(context.Background(), &audit.Query{})
			if err != nil || len(got) != 1 {
				t.Fatalf("expected one record, got %v (%v)", got, err)
			}
			g := *got[0]
			if !g.Time.Equal(want.Time) {
				t.Errorf("expected time %v, got %v", want.Time, g.Time)
			}
			g.Time = want.Time
			if g != want {
				t.Errorf("expected %+v, got %+v", want, g)
			}
		})
	}
}

// TestStorage_DeleteAndTrim tests retention primitives.
func TestStorage_DeleteAndTrim(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s)

			cutoff := base.Add(time.Minute)
			n, err := s.Delete(ctx, &audit.Query{EndTime: &cutoff})
			if err != nil || n != 1 {
				t.Fatalf("expected 1 deleted, got %d (%v)", n, err)
			}

			n, err = s.Trim(ctx, 2)
			if err != nil || n != 1 {
				t.Fatalf("expected 1 trimmed, got %d (%v)", n, err)
			}
			if n, _ = s.Trim(ctx, 5); n != 0 {
				t.Errorf("expected nothing trimmed under limit, got %d", n)
			}

			count, err := s.Count(ctx, &audit.Query{})
			if err != nil || count != 2 {
				t.Errorf("expected 2 remaining, got %d (%v)", count, err)
			}
			got, _ := s.Query(ctx, &audit.Query{})
			if g := ids(got); !equal(g, []string{"4", "3"}) {
				t.Errorf("expected newest kept, got %v", g)
			}
		})
	}
}

// TestOpen tests driver selection.
func TestOpen(t *testing.T) {
	s, err := Open(Config{Driver: DriverMemory}, nil)
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*MemoryStorage); !ok {
		t.Errorf("expected *MemoryStorage, got %T", s)
	}
	if _, err := Open(Config{Driver: "postgres"}, nil); err == nil {
		t.Error("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: DriverSQLite}, nil); err == nil {
		t.Error("expected error for missing path")
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
