package cli

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestProgress(buf *bytes.Buffer, files int) *UploadProgress {
	p := NewUploadProgress(buf, files)
	t0 := p.start
	calls := 0
	// Each render sees one more second elapsed.
	p.now = func() time.Time {
		calls++
		return t0.Add(time.Duration(calls) * time.Second)
	}
	return p
}

// TestUploadProgress tests the status line after each file.
func TestUploadProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	p := newTestProgress(buf, 2)

	p.FileDone(10, 512)
	if want := "[1/2 files] 10 samples, 512 B, 10 samples/s"; !strings.Contains(buf.String(), want) {
		t.Errorf("expected %q in %q", want, buf.String())
	}

	p.FileDone(30, 2048)
	p.Finish()
	out := buf.String()
	if want := "[2/2 files] 40 samples, 2.5 KiB"; !strings.Contains(out, want) {
		t.Errorf("expected %q in %q", want, out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("expected Finish to end the line, got %q", out)
	}
}

// TestUploadProgress_Fail tests that a failure stops further rendering.
func TestUploadProgress_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	p := newTestProgress(buf, 3)

	p.FileDone(5, 100)
	p.Fail("second.json", errors.New("collector returned 503"))
	p.Fail("second.json", errors.New("again"))
	before := buf.String()
	p.FileDone(5, 100)
	p.Finish()

	if !strings.Contains(before, "second.json: collector returned 503") {
		t.Errorf("expected the error line, got %q", before)
	}
	if strings.Contains(before, "again") {
		t.Errorf("expected one error line, got %q", before)
	}
	if buf.String() != before {
		t.Errorf("expected no output after Fail, got %q", buf.String()[len(before):])
	}
}

// TestFormatBytes tests byte size rendering.
func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{n: 0, want: "0 B"},
		{n: 1023, want: "1023 B"},
		{n: 1024, want: "1.0 KiB"},
		{n: 1536, want: "1.5 KiB"},
		{n: 5 << 20, want: "5.0 MiB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatBytes(tt.n); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestUploadProgress_Concurrent tests concurrent updates.
func TestUploadProgress_Concurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewUploadProgress(buf, 10)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.FileDone(1, 10)
		}()
	}
	wg.Wait()
	p.Finish()

	if !strings.Contains(buf.String(), "[10/10 files] 10 samples, 100 B") {
		t.Errorf("expected final totals, got %q", buf.String())
	}
}
