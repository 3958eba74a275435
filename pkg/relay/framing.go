package relay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// readChunk is the number of bytes requested from the pipe per read.
const readChunk = 10_000

// Delimiter terminates every frame.
var Delimiter = []byte{0, 1, 2}

// substitute replaces delimiter occurrences inside payloads. It contains no
// delimiter byte, so no delimiter can straddle a substitution.
var substitute = newSubstitute()

func newSubstitute() []byte {
	for {
		id := uuid.New()
		if !slices.ContainsFunc(id[:], func(b byte) bool { return b <= 2 }) {
			return id[:]
		}
	}
}

// Escape rewrites delimiter occurrences in payload to the substitute.
func Escape(payload []byte) []byte {
	if !bytes.Contains(payload, Delimiter) {
		return payload
	}
	return bytes.ReplaceAll(payload, Delimiter, substitute)
}

// Unescape reverses Escape. The result never aliases frame.
func Unescape(frame []byte) []byte {
	return bytes.ReplaceAll(frame, substitute, Delimiter)
}

// Channel is a unidirectional framed byte stream over an OS pipe. Writes are
// serialized so frames never interleave. Read returns one frame at a time in
// the order they were written.
type Channel struct {
	r *os.File
	w *os.File

	wmu sync.Mutex

	rmu     sync.Mutex
	pending []byte
	chunk   []byte

	closeOnce sync.Once
}

// NewChannel opens a pipe and wraps both ends.
func NewChannel() (*Channel, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("open pipe: %w", err)
	}
	return &Channel{r: r, w: w, chunk: make([]byte, readChunk)}, nil
}

// Write appends payload as one frame.
func (c *Channel) Write(payload []byte) error {
	frame := Escape(payload)
	buf := make([]byte, 0, len(frame)+len(Delimiter))
	buf = append(buf, frame...)
	buf = append(buf, Delimiter...)

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.w.Write(buf); err != nil {
		return mapIOError(err)
	}
	return nil
}

// Read blocks until a full frame is available and returns it unescaped.
func (c *Channel) Read() ([]byte, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for {
		if i := bytes.Index(c.pending, Delimiter); i >= 0 {
			frame := Unescape(c.pending[:i])
			c.pending = c.pending[i+len(Delimiter):]
			return frame, nil
		}

		n, err := c.r.Read(c.chunk)
		if n > 0 {
			c.pending = append(c.pending, c.chunk[:n]...)
			continue
		}
		if err != nil {
			return nil, mapIOError(err)
		}
	}
}

// SetReadDeadline bounds pending and future Read calls. A zero t clears it.
func (c *Channel) SetReadDeadline(t time.Time) error {
	return c.r.SetReadDeadline(t)
}

// Close closes both ends. Blocked Read and Write calls return ErrClosed.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = errors.Join(c.w.Close(), c.r.Close())
	})
	return err
}

func mapIOError(err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed), errors.Is(err, syscall.EPIPE):
		return ErrClosed
	default:
		return err
	}
}
