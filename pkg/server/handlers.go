package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/pulse/pkg/audit"
	"mercator-hq/pulse/pkg/audit/recorder"
	"mercator-hq/pulse/pkg/collector"
	"mercator-hq/pulse/pkg/instrument"
	"mercator-hq/pulse/pkg/telemetry/logging"
	"mercator-hq/pulse/pkg/telemetry/tracing"
)

// ContentType is the exposition content type served on /metrics.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

const notFoundMessage = "Not Found! The collector only listens on /metrics and /send-metrics\n"

// handleMetrics serves the aggregated exposition text.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), s.config.ScrapeTimeout)
	defer cancel()

	text, err := s.pipeline.Text(ctx)
	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
		s.logger.WarnContext(r.Context(), "generating metrics text timed out", "timeout", s.config.ScrapeTimeout)
	case err != nil:
		outcome = "error"
		s.logger.ErrorContext(r.Context(), "generating metrics text failed", "error", err)
	}
	if s.recorder != nil {
		s.recorder.HTTP.ObserveScrape(outcome, time.Since(start))
	}
	trace.SpanFromContext(r.Context()).SetAttributes(tracing.AttrScrapeOutcome.String(outcome))

	working := instrument.NewGauge(s.metricName(collector.WorkingMetric),
		"Is the collector able to collect metrics")
	if err == nil {
		working.Observe(1, nil)
	} else {
		working.Observe(0, nil)
	}

	var body strings.Builder
	if werr := instrument.WriteText(&body, working); werr != nil {
		s.logger.ErrorContext(r.Context(), "rendering collector_working failed", "error", werr)
	}
	if err == nil && text != "" {
		body.WriteString("\n")
		body.WriteString(text)
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(body.String()))
	}
}

// handleSendMetrics accepts a stream of JSON samples.
func (s *Server) handleSendMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	var hasher *recorder.BodyHasher
	if s.audit != nil {
		hasher = recorder.NewBodyHasher(r.Body)
		r.Body = struct {
			io.Reader
			io.Closer
		}{hasher, r.Body}
	}

	if s.limiter != nil {
		if !s.limiter.Acquire() {
			if s.recorder != nil {
				s.recorder.HTTP.AddIngested("rejected", 1)
			}
			const msg = "too many concurrent requests"
			s.record(r, start, hasher, http.StatusTooManyRequests, 0, msg)
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"accepted": 0,
				"error":    msg,
			})
			return
		}
		defer s.limiter.Release()
	}

	accepted, err := s.ingest(w, r)
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		tracing.AttrSamplesAccepted.Int(accepted),
		tracing.AttrContentEncoding.String(r.Header.Get("Content-Encoding")),
	)
	if err != nil {
		tracing.SetStatus(span, err)
	}
	if s.recorder != nil {
		s.recorder.HTTP.AddIngested("accepted", accepted)
	}
	if err != nil {
		if s.recorder != nil {
			s.recorder.HTTP.AddIngested("rejected", 1)
		}
		s.logger.WarnContext(r.Context(), "sample ingestion stopped",
			"accepted", accepted,
			"error", err,
		)
		s.record(r, start, hasher, err.status, accepted, err.Error())
		if err.retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(err.retryAfter.Seconds()))))
		}
		writeJSON(w, err.status, map[string]any{
			"accepted": accepted,
			"error":    err.Error(),
		})
		return
	}

	s.record(r, start, hasher, http.StatusOK, accepted, "")
	writeJSON(w, http.StatusOK, map[string]any{"accepted": accepted})
}

// record hands an ingestion outcome to the audit log, if configured.
func (s *Server) record(r *http.Request, start time.Time, hasher *recorder.BodyHasher, status, accepted int, errMsg string) {
	if s.audit == nil {
		return
	}
	rec := &audit.Record{
		RequestID:       logging.RequestID(r.Context()),
		Time:            start,
		Producer:        producerKey(r),
		RemoteAddr:      r.RemoteAddr,
		Status:          status,
		Accepted:        accepted,
		ContentEncoding: r.Header.Get("Content-Encoding"),
		Duration:        time.Since(start),
		Error:           errMsg,
	}
	if hasher != nil {
		rec.Bytes = hasher.Bytes()
		rec.BodyHash = hasher.Sum()
	}
	s.audit.Record(rec)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(notFoundMessage))
}

func (s *Server) metricName(name string) string {
	if s.namespace == "" {
		return name
	}
	return s.namespace + "_" + name
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
