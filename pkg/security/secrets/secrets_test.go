package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envProvider(vars map[string]string) *EnvProvider {
	p := NewEnvProvider("")
	p.lookup = func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
	return p
}

// TestEnvProvider tests name mapping.
func TestEnvProvider(t *testing.T) {
	p := envProvider(map[string]string{"PULSE_SECRET_WEB_TOKEN": "from-env"})

	got, err := p.Get(context.Background(), "web-token")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "from-env" {
		t.Errorf("expected from-env, got %q", got)
	}

	if _, err := p.Get(context.Background(), "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestFileProvider tests reads, permissions and path confinement.
func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	write := func(name, value string, mode os.FileMode) {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(value), mode); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(path, mode); err != nil {
			t.Fatal(err)
		}
	}
	write("web-token", "  from-file\n", 0o600)
	write("loose", "x", 0o644)
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o700); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}

	tests := []struct {
		name         string
		secret       string
		want         string
		wantErr      bool
		wantNotFound bool
	}{
		{name: "trimmed", secret: "web-token", want: "from-file"},
		{name: "missing", secret: "nope", wantErr: true, wantNotFound: true},
		{name: "insecure mode", secret: "loose", wantErr: true},
		{name: "directory", secret: "sub", wantErr: true},
		{name: "traversal", secret: "../etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Get(context.Background(), tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if errors.Is(err, ErrNotFound) != tt.wantNotFound {
				t.Errorf("expected not found %v, got %v", tt.wantNotFound, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := NewFileProvider(filepath.Join(dir, "web-token")); err == nil {
		t.Error("expected error for a file as secrets dir")
	}
}

// TestResolver_Resolve tests reference substitution and provider order.
func TestResolver_Resolve(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "shared"), []byte("file-value"), 0o600); err != nil {
		t.Fatal(err)
	}
	files, err := NewFileProvider(dir)
	if err != nil {
		t.Fatal(err)
	}
	env := envProvider(map[string]string{"PULSE_SECRET_SHARED": "env-value", "PULSE_SECRET_A": "1"})
	r := NewResolver(nil, env, files)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "plain", input: "no-refs-here", want: "no-refs-here"},
		{name: "env first", input: "${secret:shared}", want: "env-value"},
		{name: "embedded", input: "pre-${secret:a}-post", want: "pre-1-post"},
		{name: "missing", input: "${secret:missing-one}", wantErr: "mi...ne"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if got, _ := NewResolver(nil, files).Resolve(context.Background(), "${secret:shared}"); got != "file-value" {
		t.Errorf("expected file-value, got %q", got)
	}
}

// TestIsReference tests reference detection.
func TestIsReference(t *testing.T) {
	if !IsReference("${secret:x}") {
		t.Error("expected reference")
	}
	if IsReference("$secret:x") {
		t.Error("expected no reference")
	}
}
