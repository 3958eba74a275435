package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/pulse/pkg/config"
	"mercator-hq/pulse/pkg/ratelimit"
	"mercator-hq/pulse/pkg/security/auth"
)

// TestRoutes_Auth tests which routes require a producer token.
func TestRoutes_Auth(t *testing.T) {
	tokens := auth.NewTokenValidator([]config.TokenConfig{{Name: "web", Token: "web-token-0123456789"}})

	tests := []struct {
		name           string
		protectMetrics bool
		method         string
		path           string
		token          string
		wantStatus     int
	}{
		{name: "ingest without token", method: http.MethodPost, path: "/send-metrics", wantStatus: http.StatusUnauthorized},
		{name: "ingest with token", method: http.MethodPost, path: "/send-metrics", token: "web-token-0123456789", wantStatus: http.StatusOK},
		{name: "scrape open", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "scrape protected", protectMetrics: true, method: http.MethodGet, path: "/metrics", wantStatus: http.StatusUnauthorized},
		{name: "scrape protected with token", protectMetrics: true, method: http.MethodGet, path: "/metrics", token: "web-token-0123456789", wantStatus: http.StatusOK},
		{name: "health open", protectMetrics: true, method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Server
			cfg.Auth.ProtectMetrics = tt.protectMetrics
			srv := NewServer(&cfg, Options{
				Pipeline: &fakePipeline{text: "x 1\n"},
				Tokens:   tokens,
				Logger:   testLogger(),
			})

			var body io.Reader
			if tt.method == http.MethodPost {
				body = strings.NewReader(`{"_type":"Custom","name":"deploys","type":"Counter"}`)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			rec := do(t, srv.Handler(), req)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

// selfSigned returns a certificate for 127.0.0.1 and a pool trusting it.
func selfSigned(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "pulse-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, pool
}

// TestServer_TLS tests serving over TLS on a real listener.
func TestServer_TLS(t *testing.T) {
	cert, pool := selfSigned(t)
	cfg := config.Default().Server
	cfg.ShutdownTimeout = time.Second
	srv := NewServer(&cfg, Options{
		Pipeline:  &fakePipeline{text: "x 1\n"},
		Namespace: "pulse",
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
		Logger:    testLogger(),
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	defer func() {
		cancel()
		<-done
	}()

	client := &http.Client{
		Timeout:   2 * time.Second,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}},
	}
	url := "https://" + ln.Addr().String() + "/metrics"

	var resp *http.Response
	for range 50 {
		resp, err = client.Get(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET over TLS: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "pulse_collector_working 1") {
		t.Errorf("expected collector_working in:\n%s", body)
	}

	plain, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err == nil {
		defer plain.Body.Close()
		if plain.StatusCode == http.StatusOK {
			t.Error("expected plain HTTP to be refused on a TLS listener")
		}
	}
}

// TestHandleSendMetrics_RateLimit tests per-producer throttling.
func TestHandleSendMetrics_RateLimit(t *testing.T) {
	p := &fakePipeline{}
	cfg := config.Default().Server
	srv := NewServer(&cfg, Options{
		Pipeline: p,
		Limiter:  ratelimit.New(ratelimit.Config{SamplesPerSecond: 0.001, Burst: 2}),
		Logger:   testLogger(),
	})
	h := srv.Handler()

	body := strings.Repeat(`{"_type":"Custom","name":"deploys","type":"Counter"}`+"\n", 3)
	req := httptest.NewRequest(http.MethodPost, "/send-metrics", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:1234"
	rec := do(t, h, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
	if !strings.Contains(rec.Body.String(), `"accepted":2`) {
		t.Errorf("expected 2 accepted, got %s", rec.Body.String())
	}
	if p.count() != 2 {
		t.Errorf("expected 2 enqueued, got %d", p.count())
	}

	// Another client address has its own bucket.
	req = httptest.NewRequest(http.MethodPost, "/send-metrics", strings.NewReader(`{"_type":"Custom","name":"deploys","type":"Counter"}`))
	req.RemoteAddr = "10.0.0.2:1234"
	if rec := do(t, h, req); rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for a second producer, got %d", rec.Code)
	}
}

// TestHandleSendMetrics_Concurrency tests the concurrent request cap.
func TestHandleSendMetrics_Concurrency(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{MaxConcurrent: 1})
	if !limiter.Acquire() {
		t.Fatal("expected the first slot")
	}
	defer limiter.Release()

	cfg := config.Default().Server
	srv := NewServer(&cfg, Options{Pipeline: &fakePipeline{}, Limiter: limiter, Logger: testLogger()})

	req := httptest.NewRequest(http.MethodPost, "/send-metrics", strings.NewReader(`{"_type":"Custom","name":"deploys","type":"Counter"}`))
	if rec := do(t, srv.Handler(), req); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
}
