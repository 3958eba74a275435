package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/pulse/pkg/sample"
)

// Sink receives reported samples. *aggregator.Aggregator and
// *client.Client implement it.
type Sink interface {
	Submit(ctx context.Context, samples ...sample.Sample) error
}

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("reporter already running")

// Scheduler submits a process snapshot to a sink on a cron schedule.
type Scheduler struct {
	reporter *ProcessReporter
	sink     Sink
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler. schedule accepts standard cron
// expressions and descriptors such as "@every 30s".
func NewScheduler(reporter *ProcessReporter, sink Sink, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		reporter: reporter,
		sink:     sink,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "reporter"),
	}
}

// Start reports once immediately and then on every tick until ctx is done
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.report(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule reporter: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("process reporter started", "schedule", s.schedule, "pid", s.reporter.pid)

	go s.report(ctx)
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunOnce collects and submits one snapshot.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.sink.Submit(ctx, s.reporter.Collect())
}

func (s *Scheduler) report(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Warn("process report failed", "error", err)
		return
	}
	s.logger.Debug("process report submitted")
}

// Stop stops the scheduler and waits for a running report to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("process reporter stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled report time, or nil when not
// scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 || !s.running {
		return nil
	}
	next := entries[0].Next
	return &next
}
