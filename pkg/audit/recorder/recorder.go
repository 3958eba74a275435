package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/pulse/pkg/audit"
)

// Config configures a Recorder.
type Config struct {
	// Buffer is the queue capacity. Default: 1000
	Buffer int

	// WriteTimeout bounds a single storage write. Default: 5s
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() Config {
	return Config{
		Buffer:       1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder queues records and writes them to storage in the background.
type Recorder struct {
	storage audit.Storage
	config  Config
	queue   chan *audit.Record
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// New starts a recorder writing to storage.
func New(storage audit.Storage, cfg Config, logger *slog.Logger) *Recorder {
	def := DefaultConfig()
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage: storage,
		config:  cfg,
		queue:   make(chan *audit.Record, cfg.Buffer),
		done:    make(chan struct{}),
		logger:  logger.With("component", "audit.recorder"),
	}
	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("audit recorder started",
		"buffer", cfg.Buffer,
		"write_timeout", cfg.WriteTimeout,
	)
	return r
}

// Record queues rec for writing. It assigns an ID and time when unset
// and never blocks; a full queue drops the record.
func (r *Recorder) Record(rec *audit.Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping record",
			"request_id", rec.RequestID,
			"capacity", r.config.Buffer,
		)
	}
}

// Stats reports how many records were written, dropped and failed.
func (r *Recorder) Stats() (written, dropped, failed int64) {
	return r.written.Load(), r.dropped.Load(), r.failed.Load()
}

// Close stops accepting records and waits until the queue is drained.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		close(r.done)
		r.wg.Wait()

		written, dropped, failed := r.Stats()
		r.logger.Info("audit recorder stopped",
			"written", written,
			"dropped", dropped,
			"failed", failed,
		)
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.queue:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *audit.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, rec); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to store audit record",
			"record_id", rec.ID,
			"request_id", rec.RequestID,
			"error", err,
		)
		return
	}
	r.written.Add(1)

	if d := time.Since(start); d > r.config.WriteTimeout/2 {
		r.logger.Warn("slow audit write",
			"record_id", rec.ID,
			"duration_ms", d.Milliseconds(),
		)
	}
}
