package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// UploadProgress renders a one-line status for a multi-file upload to a
// collector: files done, samples accepted, bytes sent and sample rate.
type UploadProgress struct {
	w     io.Writer
	files int
	now   func() time.Time

	mu       sync.Mutex
	start    time.Time
	done     int
	accepted int
	bytes    int64
	failed   bool
}

// NewUploadProgress starts tracking an upload of files files. A nil w
// writes to os.Stderr.
func NewUploadProgress(w io.Writer, files int) *UploadProgress {
	if w == nil {
		w = os.Stderr
	}
	p := &UploadProgress{w: w, files: files, now: time.Now}
	p.start = p.now()
	return p
}

// FileDone records one finished request.
func (p *UploadProgress) FileDone(accepted int, bytes int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.accepted += accepted
	p.bytes += bytes
	p.render()
}

// Fail prints the error for name on its own line. Later updates are
// ignored.
func (p *UploadProgress) Fail(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failed {
		return
	}
	p.failed = true
	fmt.Fprintf(p.w, "\n%s: %v\n", name, err)
}

// Finish ends the status line.
func (p *UploadProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failed {
		return
	}
	p.render()
	fmt.Fprintln(p.w)
}

func (p *UploadProgress) render() {
	if p.failed {
		return
	}
	rate := 0.0
	if elapsed := p.now().Sub(p.start).Seconds(); elapsed > 0 {
		rate = float64(p.accepted) / elapsed
	}
	fmt.Fprintf(p.w, "\r[%d/%d files] %d samples, %s, %.0f samples/s",
		p.done, p.files, p.accepted, formatBytes(p.bytes), rate)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
