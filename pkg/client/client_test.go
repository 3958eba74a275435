package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"mercator-hq/pulse/pkg/aggregator"
	"mercator-hq/pulse/pkg/collector"
	"mercator-hq/pulse/pkg/config"
	"mercator-hq/pulse/pkg/sample"
	"mercator-hq/pulse/pkg/security/auth"
	"mercator-hq/pulse/pkg/server"
	"mercator-hq/pulse/pkg/telemetry/tracing"
)

// TestNew tests URL validation.
func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		wantErr  bool
		endpoint string
	}{
		{name: "plain", baseURL: "http://127.0.0.1:9405", endpoint: "http://127.0.0.1:9405/send-metrics"},
		{name: "trailing slash", baseURL: "http://collector/", endpoint: "http://collector/send-metrics"},
		{name: "prefix", baseURL: "https://example.com/pulse", endpoint: "https://example.com/pulse/send-metrics"},
		{name: "no scheme", baseURL: "127.0.0.1:9405", wantErr: true},
		{name: "ftp", baseURL: "ftp://example.com", wantErr: true},
		{name: "no host", baseURL: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.baseURL, Options{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Endpoint() != tt.endpoint {
				t.Errorf("expected endpoint %s, got %s", tt.endpoint, c.Endpoint())
			}
		})
	}
}

// TestSend tests the request format.
func TestSend(t *testing.T) {
	for _, useGzip := range []bool{false, true} {
		name := "plain"
		if useGzip {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			var gotBody, gotEncoding, gotPath string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotEncoding = r.Header.Get("Content-Encoding")

				var body io.Reader = r.Body
				if gotEncoding == "gzip" {
					gz, err := gzip.NewReader(r.Body)
					if err != nil {
						http.Error(w, err.Error(), http.StatusBadRequest)
						return
					}
					body = gz
				}
				data, _ := io.ReadAll(body)
				gotBody = string(data)
				_, _ = io.WriteString(w, `{"accepted":2}`)
			}))
			defer ts.Close()

			c, err := New(ts.URL, Options{Gzip: useGzip})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			err = c.Send(context.Background(),
				&sample.Job{JobName: "Bob", Duration: 1, Success: true},
				&sample.Custom{Name: "deploys", Type: "Counter"},
			)
			if err != nil {
				t.Fatalf("Send() error = %v", err)
			}

			if gotPath != SendPath {
				t.Errorf("expected path %s, got %s", SendPath, gotPath)
			}
			if (gotEncoding == "gzip") != useGzip {
				t.Errorf("unexpected content encoding %q", gotEncoding)
			}
			lines := strings.Split(strings.TrimSpace(gotBody), "\n")
			if len(lines) != 2 {
				t.Fatalf("expected 2 lines, got %d: %q", len(lines), gotBody)
			}
			if !strings.HasPrefix(lines[0], `{"_type":"Job"`) || !strings.HasPrefix(lines[1], `{"_type":"Custom"`) {
				t.Errorf("unexpected body %q", gotBody)
			}
		})
	}
}

// TestSend_Nothing tests that an empty call sends no request.
func TestSend_Nothing(t *testing.T) {
	c, err := New("http://127.0.0.1:1", Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Send(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

// TestSend_StatusError tests non-2xx handling.
func TestSend_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"accepted":0,"error":"sample 1: unknown sample kind"}`)
	}))
	defer ts.Close()

	c, _ := New(ts.URL, Options{})
	err := c.Send(context.Background(), &sample.Custom{Name: "x", Type: "Counter"})
	if !IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected a 400 StatusError, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown sample kind") {
		t.Errorf("expected the collector message in %q", err.Error())
	}
}

// TestSend_EndToEnd tests a client against a real server and aggregator.
func TestSend_EndToEnd(t *testing.T) {
	agg, err := aggregator.New(aggregator.Options{Collector: collector.Options{Namespace: "pulse"}})
	if err != nil {
		t.Fatalf("aggregator.New() error = %v", err)
	}
	defer agg.Close()

	cfg := config.Default().Server
	srv := server.NewServer(&cfg, server.Options{Pipeline: agg, Namespace: "pulse"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c, err := New(ts.URL, Options{Gzip: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Submit(context.Background(),
		&sample.Job{JobName: "Bob", Duration: 2, Success: true, Scheduled: true},
		&sample.Web{Controller: "list", Action: "latest", StatusCode: 200, Tracked: true, Duration: sample.Float(0.2)},
	); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	agg.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/metrics", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("scrape error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"pulse_collector_working 1",
		`pulse_scheduled_job_count{job_name="Bob",success="true"} 1`,
		`pulse_page_views{db="default",device="desktop",type="anon"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in:\n%s", want, body)
		}
	}
}

// TestSend_PropagatesTrace tests that the caller's span reaches the collector.
func TestSend_PropagatesTrace(t *testing.T) {
	tracer := tracing.NewFromProvider(sdktrace.NewTracerProvider())
	ctx, span := tracer.Start(context.Background(), "producer")
	defer span.End()

	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = tracing.TraceID(tracing.Extract(r.Context(), r.Header))
		_, _ = io.WriteString(w, `{"accepted":1}`)
	}))
	defer ts.Close()

	c, err := New(ts.URL, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Send(ctx, &sample.Custom{Name: "deploys", Type: "Counter"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if want := tracing.TraceID(ctx); got != want {
		t.Errorf("expected trace %s, got %s", want, got)
	}
}

// TestSend_Token tests authentication against a protected collector.
func TestSend_Token(t *testing.T) {
	agg, err := aggregator.New(aggregator.Options{Collector: collector.Options{Namespace: "pulse"}})
	if err != nil {
		t.Fatalf("aggregator.New() error = %v", err)
	}
	defer agg.Close()

	cfg := config.Default().Server
	srv := server.NewServer(&cfg, server.Options{
		Pipeline: agg,
		Tokens:   auth.NewTokenValidator([]config.TokenConfig{{Name: "web", Token: "web-token-0123456789"}}),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "valid", token: "web-token-0123456789"},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "wrong", token: "nope-token-0123456789", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(ts.URL, Options{Token: tt.token})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			err = c.Send(context.Background(), &sample.Custom{Name: "deploys", Type: "Counter"})
			if tt.wantStatus == 0 {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !IsStatus(err, tt.wantStatus) {
				t.Errorf("expected status %d, got %v", tt.wantStatus, err)
			}
		})
	}
}
