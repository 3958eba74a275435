package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/pulse/pkg/sample"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRelayMetrics tests the relay observer methods.
func TestRelayMetrics(t *testing.T) {
	r := NewRecorder("pulse", nil)

	r.Relay.ItemEnqueued(1)
	r.Relay.ItemEnqueued(2)
	r.Relay.ItemEvicted()
	r.Relay.WorkerRestarted("consumer")
	r.Relay.WorkerRestarted("consumer")
	r.Relay.WatermarkExceeded(10_001)
	r.Relay.DrainServed(3)

	if got := testutil.ToFloat64(r.Relay.enqueued); got != 2 {
		t.Errorf("expected 2 enqueues, got %v", got)
	}
	if got := testutil.ToFloat64(r.Relay.pending); got != 10_001 {
		t.Errorf("expected pending 10001, got %v", got)
	}
	if got := testutil.ToFloat64(r.Relay.restarts.WithLabelValues("consumer")); got != 2 {
		t.Errorf("expected 2 consumer restarts, got %v", got)
	}
	if got := testutil.ToFloat64(r.Relay.drainedItems); got != 3 {
		t.Errorf("expected 3 drained items, got %v", got)
	}

	expected := `
# HELP pulse_relay_evicted_total Total number of items dropped from the retained window
# TYPE pulse_relay_evicted_total counter
pulse_relay_evicted_total 1
`
	if err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "pulse_relay_evicted_total"); err != nil {
		t.Error(err)
	}
}

// TestSampleMetrics tests the collector observer methods.
func TestSampleMetrics(t *testing.T) {
	r := NewRecorder("pulse", nil)

	r.Samples.SampleAccepted(sample.KindWeb)
	r.Samples.SampleAccepted(sample.KindWeb)
	r.Samples.SampleRejected("", "decode")
	r.Samples.SampleRejected(sample.KindCustom, "unknown_type")

	expected := `
# HELP pulse_collector_samples_accepted_total Total number of samples folded into instruments
# TYPE pulse_collector_samples_accepted_total counter
pulse_collector_samples_accepted_total{kind="Web"} 2
# HELP pulse_collector_samples_rejected_total Total number of samples rejected by the collector
# TYPE pulse_collector_samples_rejected_total counter
pulse_collector_samples_rejected_total{kind="Custom",reason="unknown_type"} 1
pulse_collector_samples_rejected_total{kind="unknown",reason="decode"} 1
`
	if err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"pulse_collector_samples_accepted_total", "pulse_collector_samples_rejected_total"); err != nil {
		t.Error(err)
	}
}

// TestHTTPMetrics tests scrape and ingestion accounting.
func TestHTTPMetrics(t *testing.T) {
	r := NewRecorder("pulse", nil)

	r.HTTP.ObserveScrape("ok", 5*time.Millisecond)
	r.HTTP.ObserveScrape("timeout", 2*time.Second)
	r.HTTP.AddIngested("accepted", 4)
	r.HTTP.AddIngested("rejected", 0)

	if got := testutil.ToFloat64(r.HTTP.scrapes.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 ok scrape, got %v", got)
	}
	if got := testutil.CollectAndCount(r.HTTP.scrapeDuration); got != 1 {
		t.Errorf("expected 1 histogram series, got %d", got)
	}
	if got := testutil.ToFloat64(r.HTTP.ingested.WithLabelValues("accepted")); got != 4 {
		t.Errorf("expected 4 accepted samples, got %v", got)
	}
	if got := testutil.CollectAndCount(r.HTTP.ingested); got != 1 {
		t.Errorf("expected zero additions to create no series, got %d series", got)
	}
}

// TestHandler tests the self metrics endpoint.
func TestHandler(t *testing.T) {
	r := NewRecorder("pulse", nil)
	r.Relay.ItemEnqueued(1)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"pulse_relay_enqueued_total 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in response", want)
		}
	}
}
