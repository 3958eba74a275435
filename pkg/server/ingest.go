package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"mercator-hq/pulse/pkg/sample"
	"mercator-hq/pulse/pkg/security/auth"
)

// ingestError is an ingestion failure with the status to answer.
type ingestError struct {
	status     int
	err        error
	retryAfter time.Duration
}

func (e *ingestError) Error() string { return e.err.Error() }

func (e *ingestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) *ingestError {
	return &ingestError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

// ingest decodes the body as concatenated JSON objects and enqueues each
// valid sample. It stops at the first invalid one; samples before it stay
// enqueued.
func (s *Server) ingest(w http.ResponseWriter, r *http.Request) (int, *ingestError) {
	body := io.Reader(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))

	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return 0, badRequest("invalid gzip body: %w", err)
		}
		defer gz.Close()
		// The limit applies to the decompressed stream too.
		body = io.LimitReader(gz, s.config.MaxBodyBytes+1)
	default:
		return 0, &ingestError{
			status: http.StatusUnsupportedMediaType,
			err:    fmt.Errorf("unsupported content encoding %q", enc),
		}
	}

	producer := producerKey(r)
	counted := &countingReader{r: body}
	dec := json.NewDecoder(counted)
	accepted := 0
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return accepted, nil
		}
		if counted.n > s.config.MaxBodyBytes {
			return accepted, &ingestError{
				status: http.StatusRequestEntityTooLarge,
				err:    fmt.Errorf("body exceeds %d bytes", s.config.MaxBodyBytes),
			}
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return accepted, &ingestError{status: http.StatusRequestEntityTooLarge, err: err}
			}
			return accepted, badRequest("sample %d: %w", accepted+1, err)
		}

		if _, err := sample.Decode(raw); err != nil {
			return accepted, badRequest("sample %d: %w", accepted+1, err)
		}
		if s.limiter != nil {
			if ok, retry := s.limiter.Allow(producer, 1); !ok {
				return accepted, &ingestError{
					status:     http.StatusTooManyRequests,
					err:        fmt.Errorf("sample %d: rate limit exceeded for %s", accepted+1, producer),
					retryAfter: retry,
				}
			}
		}
		if err := s.pipeline.Enqueue(bytes.Clone(raw)); err != nil {
			return accepted, &ingestError{status: http.StatusServiceUnavailable, err: err}
		}
		accepted++
	}
}

// producerKey names the producer for rate limiting: the token name when
// authenticated, the client host otherwise.
func producerKey(r *http.Request) string {
	if p, ok := auth.ProducerFromContext(r.Context()); ok {
		return p
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
