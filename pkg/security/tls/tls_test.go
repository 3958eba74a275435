package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/pulse/pkg/config"
)

// writeCert writes a self-signed certificate for 127.0.0.1 valid over
// [notBefore, notAfter] and returns the file paths.
func writeCert(t *testing.T, dir, cn string, notBefore, notAfter time.Time) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	certFile = filepath.Join(dir, cn+".pem")
	keyFile = filepath.Join(dir, cn+"-key.pem")
	writePEM(t, certFile, "CERTIFICATE", der)
	writePEM(t, keyFile, "EC PRIVATE KEY", keyDER)
	return certFile, keyFile
}

func writePEM(t *testing.T, path, typ string, der []byte) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func validCert(t *testing.T, dir, cn string) (string, string) {
	now := time.Now()
	return writeCert(t, dir, cn, now.Add(-time.Hour), now.Add(365*24*time.Hour))
}

// TestValidateCertificate tests validity window checks.
func TestValidateCertificate(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	tests := []struct {
		name      string
		notBefore time.Time
		notAfter  time.Time
		wantErr   bool
	}{
		{name: "valid", notBefore: now.Add(-time.Hour), notAfter: now.Add(time.Hour)},
		{name: "expired", notBefore: now.Add(-2 * time.Hour), notAfter: now.Add(-time.Hour), wantErr: true},
		{name: "not yet valid", notBefore: now.Add(time.Hour), notAfter: now.Add(2 * time.Hour), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certFile, keyFile := writeCert(t, dir, tt.name, tt.notBefore, tt.notAfter)
			pair, err := tls.LoadX509KeyPair(certFile, keyFile)
			if err != nil {
				t.Fatalf("load pair: %v", err)
			}
			if err := ValidateCertificate(&pair); (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}

	if err := ValidateCertificate(nil); err == nil {
		t.Error("expected error for nil certificate")
	}
}

// TestCheckCertificateExpiration tests the warning window.
func TestCheckCertificateExpiration(t *testing.T) {
	tests := []struct {
		name         string
		notAfter     time.Duration
		wantExpiring bool
	}{
		{name: "long lived", notAfter: 90 * 24 * time.Hour},
		{name: "soon", notAfter: 10 * 24 * time.Hour, wantExpiring: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := &x509.Certificate{NotAfter: time.Now().Add(tt.notAfter)}
			_, expiring := CheckCertificateExpiration(cert)
			if expiring != tt.wantExpiring {
				t.Errorf("expected expiring %v, got %v", tt.wantExpiring, expiring)
			}
		})
	}
}

// TestCertificateReloader tests initial load and reload on file change.
func TestCertificateReloader(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := validCert(t, dir, "first")

	r := NewCertificateReloader(certFile, keyFile, 20*time.Millisecond, nil)
	if r.GetCertificate() != nil {
		t.Fatal("expected no certificate before Start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	first := r.GetCertificate()

	// Replace the pair in place with a new one.
	newCert, newKey := validCert(t, dir, "second")
	for _, mv := range [][2]string{{newCert, certFile}, {newKey, keyFile}} {
		if err := os.Rename(mv[0], mv[1]); err != nil {
			t.Fatalf("rename: %v", err)
		}
	}
	later := time.Now().Add(time.Second)
	_ = os.Chtimes(certFile, later, later)
	_ = os.Chtimes(keyFile, later, later)

	deadline := time.Now().Add(2 * time.Second)
	for r.GetCertificate() == first {
		if time.Now().After(deadline) {
			t.Fatal("expected certificate to be reloaded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestCertificateReloader_StartMissing tests that a missing pair fails Start.
func TestCertificateReloader_StartMissing(t *testing.T) {
	r := NewCertificateReloader("missing.pem", "missing-key.pem", time.Second, nil)
	if err := r.Start(context.Background()); err == nil {
		t.Error("expected error for missing files")
	}
	if _, err := r.GetCertificateFunc()(nil); err == nil {
		t.Error("expected error with no certificate loaded")
	}
}

// TestServerConfig tests configuration building.
func TestServerConfig(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := validCert(t, dir, "server")
	r := NewCertificateReloader(certFile, keyFile, time.Minute, nil)

	tests := []struct {
		name       string
		cfg        config.TLSConfig
		wantNil    bool
		wantErr    bool
		wantMin    uint16
		wantClient tls.ClientAuthType
	}{
		{name: "disabled", cfg: config.TLSConfig{}, wantNil: true},
		{name: "tls 1.2", cfg: config.TLSConfig{Enabled: true, MinVersion: "1.2"}, wantMin: tls.VersionTLS12},
		{name: "tls 1.3", cfg: config.TLSConfig{Enabled: true, MinVersion: "1.3"}, wantMin: tls.VersionTLS13},
		{name: "bad version", cfg: config.TLSConfig{Enabled: true, MinVersion: "1.0"}, wantErr: true},
		{name: "mtls", cfg: config.TLSConfig{Enabled: true, ClientCAFile: certFile}, wantMin: tls.VersionTLS12, wantClient: tls.RequireAndVerifyClientCert},
		{name: "bad ca", cfg: config.TLSConfig{Enabled: true, ClientCAFile: keyFile}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ServerConfig(&tt.cfg, r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			if (got == nil) != tt.wantNil {
				t.Fatalf("expected nil %v, got %v", tt.wantNil, got)
			}
			if got == nil {
				return
			}
			if got.MinVersion != tt.wantMin {
				t.Errorf("expected min version %x, got %x", tt.wantMin, got.MinVersion)
			}
			if got.ClientAuth != tt.wantClient {
				t.Errorf("expected client auth %v, got %v", tt.wantClient, got.ClientAuth)
			}
		})
	}
}

// TestServerConfig_Handshake tests serving HTTPS with the reloaded pair.
func TestServerConfig_Handshake(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := validCert(t, dir, "server")

	r := NewCertificateReloader(certFile, keyFile, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	tlsCfg, err := ServerConfig(&config.TLSConfig{Enabled: true}, r)
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})}
	go func() { _ = srv.Serve(tls.NewListener(ln, tlsCfg)) }()
	defer srv.Close()

	pool, err := loadCertPool(certFile)
	if err != nil {
		t.Fatalf("loadCertPool() error = %v", err)
	}
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}}}
	resp, err := client.Get("https://" + ln.Addr().String())
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("expected ok, got %q", body)
	}
}
