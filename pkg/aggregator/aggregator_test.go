package aggregator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/pulse/pkg/collector"
	"mercator-hq/pulse/pkg/sample"
	"mercator-hq/pulse/pkg/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestAggregator(t *testing.T, opts Options) *Aggregator {
	t.Helper()
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func text(t *testing.T, a *Aggregator) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a.Flush()
	out, err := a.Text(ctx)
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	return out
}

// TestAggregator_Text tests that enqueued samples show up in the exposition.
func TestAggregator_Text(t *testing.T) {
	a := newTestAggregator(t, Options{Collector: collector.Options{Namespace: "pulse"}})

	payloads := []string{
		`{"_type":"Job","job_name":"Bob","duration":1.5,"success":true}`,
		`{"_type":"Custom","name":"deploys","type":"Counter","value":3}`,
		`{"_type":"Process","type":"web","pid":7,"rss":2048}`,
	}
	for _, p := range payloads {
		if err := a.Enqueue([]byte(p)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	got := text(t, a)
	for _, want := range []string{
		`pulse_sidekiq_job_count{job_name="Bob",success="true"} 1`,
		`deploys 3`,
		`pulse_rss{pid="7",type="web"} 2048`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}

	rendered, err := a.Collector().Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != rendered {
		t.Errorf("expected drained text to match the collector render\ngot:\n%s\nwant:\n%s", got, rendered)
	}
}

// TestAggregator_Empty tests a scrape before any sample.
func TestAggregator_Empty(t *testing.T) {
	a := newTestAggregator(t, Options{})

	if got := text(t, a); got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
}

// TestAggregator_Submit tests typed submission.
func TestAggregator_Submit(t *testing.T) {
	a := newTestAggregator(t, Options{})

	err := a.Submit(context.Background(),
		&sample.Custom{Name: "temperature", Type: "Gauge", Value: sample.Float(21.5)},
		&sample.Custom{Name: "temperature", Type: "Gauge", Value: sample.Float(22)},
	)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if got := text(t, a); !strings.Contains(got, "temperature 22\n") {
		t.Errorf("expected the latest gauge value, got:\n%s", got)
	}
}

// TestAggregator_BadSamples tests that rejected samples do not stop the pipeline.
func TestAggregator_BadSamples(t *testing.T) {
	a := newTestAggregator(t, Options{})

	for _, p := range []string{
		`not json`,
		`{"_type":"Histogram"}`,
		`{"_type":"Custom","name":"x","type":"Summary"}`,
		`{"_type":"Custom","name":"ok","type":"Counter"}`,
	} {
		if err := a.Enqueue([]byte(p)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	got := text(t, a)
	if !strings.Contains(got, "ok 1") {
		t.Errorf("expected the valid sample to be aggregated, got:\n%s", got)
	}
	if a.Restarts() != 0 {
		t.Errorf("expected no worker restarts, got %d", a.Restarts())
	}
}

// TestAggregator_Concurrent tests many producers against one collector.
func TestAggregator_Concurrent(t *testing.T) {
	a := newTestAggregator(t, Options{})

	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				_ = a.Enqueue([]byte(`{"_type":"Custom","name":"hits","type":"Counter"}`))
			}
		}()
	}
	wg.Wait()

	if got := text(t, a); !strings.Contains(got, "hits 400\n") {
		t.Errorf("expected hits 400, got:\n%s", got)
	}
	if a.Pending() != 0 {
		t.Errorf("expected no pending samples, got %d", a.Pending())
	}
}

// TestAggregator_RelayMetrics tests wiring of the relay observer.
func TestAggregator_RelayMetrics(t *testing.T) {
	recorder := metrics.NewRecorder("pulse", nil)
	a := newTestAggregator(t, Options{RelayObserver: recorder.Relay})

	for range 3 {
		_ = a.Enqueue([]byte(`{"_type":"Custom","name":"hits","type":"Counter"}`))
	}
	_ = text(t, a)

	n, err := testutil.GatherAndCount(recorder.Registry(), "pulse_relay_enqueued_total", "pulse_relay_drains_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 series, got %d", n)
	}
}

// TestAggregator_Close tests behaviour after Close.
func TestAggregator_Close(t *testing.T) {
	a, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Check(context.Background()); err != nil {
		t.Errorf("expected healthy aggregator, got %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if err := a.Enqueue([]byte(`{}`)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Enqueue, got %v", err)
	}
	if _, err := a.Text(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Text, got %v", err)
	}
	if err := a.Check(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Check, got %v", err)
	}
}

// TestAggregator_TextTimeout tests that an expired context is honoured.
func TestAggregator_TextTimeout(t *testing.T) {
	a := newTestAggregator(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Text(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
