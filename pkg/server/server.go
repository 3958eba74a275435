package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/pulse/pkg/audit"
	"mercator-hq/pulse/pkg/config"
	"mercator-hq/pulse/pkg/ratelimit"
	"mercator-hq/pulse/pkg/security/auth"
	"mercator-hq/pulse/pkg/telemetry/health"
	"mercator-hq/pulse/pkg/telemetry/metrics"
	"mercator-hq/pulse/pkg/telemetry/tracing"
)

// Pipeline is what the server needs from the aggregator.
type Pipeline interface {
	Text(ctx context.Context) (string, error)
	Enqueue(raw []byte) error
}

// AuditRecorder receives one record per ingestion request.
// *recorder.Recorder implements it.
type AuditRecorder interface {
	Record(rec *audit.Record)
}

// Options carries the collaborators of a Server.
type Options struct {
	// Pipeline is required.
	Pipeline Pipeline

	// Health serves /health and /ready. Nil creates an empty checker.
	Health *health.Checker

	BuildInfo health.BuildInfo

	// Recorder serves /metrics/self and records scrape and ingestion
	// metrics. Optional.
	Recorder *metrics.Recorder

	// Namespace prefixes the collector_working gauge.
	Namespace string

	// Tracer opens a span per request. Optional.
	Tracer *tracing.Tracer

	// TLSConfig serves HTTPS when non-nil.
	TLSConfig *tls.Config

	// Tokens authenticates /send-metrics, and /metrics when
	// auth.protect_metrics is set. Nil disables authentication.
	Tokens *auth.TokenValidator

	// Limiter throttles ingestion per producer. Optional.
	Limiter *ratelimit.Limiter

	// Audit records every /send-metrics request. Optional.
	Audit AuditRecorder

	Logger *slog.Logger
}

// Server is the HTTP server for scraping and sample ingestion.
type Server struct {
	config    *config.ServerConfig
	pipeline  Pipeline
	checker   *health.Checker
	buildInfo health.BuildInfo
	recorder  *metrics.Recorder
	namespace string
	tracer    *tracing.Tracer
	tlsConfig *tls.Config
	tokens    *auth.TokenValidator
	limiter   *ratelimit.Limiter
	audit     AuditRecorder
	logger    *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// NewServer creates a new server.
func NewServer(cfg *config.ServerConfig, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checker := opts.Health
	if checker == nil {
		checker = health.New(0)
	}

	return &Server{
		config:    cfg,
		pipeline:  opts.Pipeline,
		checker:   checker,
		buildInfo: opts.BuildInfo,
		recorder:  opts.Recorder,
		namespace: opts.Namespace,
		tracer:    opts.Tracer,
		tlsConfig: opts.TLSConfig,
		tokens:    opts.Tokens,
		limiter:   opts.Limiter,
		audit:     opts.Audit,
		logger:    logger.With("component", "server"),
	}
}

// Start listens on the configured address and serves until ctx is
// canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.addr = ln.Addr()
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting collector server",
			"address", ln.Addr().String(),
			"tls", s.tlsConfig != nil,
			"auth", s.tokens != nil,
		)

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.checker.SetDraining(true)
		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("collector server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound address while running, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures HTTP routes and middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	var scrape http.Handler = http.HandlerFunc(s.handleMetrics)
	var ingest http.Handler = http.HandlerFunc(s.handleSendMetrics)
	if s.tokens != nil {
		authenticate := auth.Middleware(s.tokens, s.logger)
		ingest = authenticate(ingest)
		if s.config.Auth.ProtectMetrics {
			scrape = authenticate(scrape)
		}
	}

	mux.Handle("/metrics", scrape)
	mux.Handle("/send-metrics", ingest)
	if s.recorder != nil {
		mux.Handle("/metrics/self", s.recorder.Handler())
	}
	health.Mount(mux, s.checker, s.buildInfo)
	mux.HandleFunc("/", s.handleNotFound)

	var handler http.Handler = mux
	handler = loggingMiddleware(s.logger)(handler)
	if s.tracer != nil {
		handler = tracing.Middleware(s.tracer)(handler)
	}
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)

	return handler
}
