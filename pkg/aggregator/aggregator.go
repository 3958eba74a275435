package aggregator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/pulse/pkg/collector"
	"mercator-hq/pulse/pkg/relay"
	"mercator-hq/pulse/pkg/sample"
)

// ErrClosed is returned once the aggregator has been closed.
var ErrClosed = relay.ErrClosed

// Options configures an Aggregator. The zero value is valid.
type Options struct {
	// Collector is passed through to collector.New. Its Logger is filled
	// from Logger when unset.
	Collector collector.Options

	// Watermark is the relay's pending queue warning threshold.
	Watermark int

	// RelayObserver receives relay events, e.g. *metrics.RelayMetrics.
	RelayObserver relay.Observer

	Logger *slog.Logger
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	collector *collector.Collector
	relay     *relay.Relay[[]byte]
	logger    *slog.Logger
}

// New starts an aggregator.
func New(opts Options) (*Aggregator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Collector.Logger == nil {
		opts.Collector.Logger = logger
	}

	a := &Aggregator{
		collector: collector.New(opts.Collector),
		logger:    logger.With("component", "aggregator"),
	}

	r, err := relay.New(0, relay.Options[[]byte]{
		Transform: a.consume,
		Report:    a.report,
		Watermark: opts.Watermark,
		Logger:    logger,
		Observer:  opts.RelayObserver,
	})
	if err != nil {
		return nil, fmt.Errorf("create aggregator relay: %w", err)
	}
	a.relay = r

	return a, nil
}

// consume runs on the relay consumer. Samples never reach the retained
// window.
func (a *Aggregator) consume(raw []byte) ([]byte, bool) {
	if err := a.collector.Process(raw); err != nil {
		a.logger.Warn("sample rejected", "error", err, "bytes", len(raw))
	}
	return nil, false
}

// report ignores the (always empty) batch and replies with the rendered
// exposition, one line per item.
func (a *Aggregator) report([][]byte) [][]byte {
	text, err := a.collector.Render()
	if err != nil {
		a.logger.Error("render failed", "error", err)
		return nil
	}
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	lines := make([][]byte, len(parts))
	for i, p := range parts {
		lines[i] = []byte(p)
	}
	return lines
}

// Enqueue hands a raw JSON sample to the collector asynchronously.
func (a *Aggregator) Enqueue(raw []byte) error {
	return a.relay.Enqueue(raw)
}

// Submit encodes s and enqueues it. It never blocks on the collector.
func (a *Aggregator) Submit(_ context.Context, samples ...sample.Sample) error {
	for _, s := range samples {
		raw, err := sample.Encode(s)
		if err != nil {
			return err
		}
		if err := a.relay.Enqueue(raw); err != nil {
			return err
		}
	}
	return nil
}

// Text drains the relay and returns the exposition text. Samples still
// waiting in the pending queue are not reflected; call Flush first when
// that matters.
func (a *Aggregator) Text(ctx context.Context) (string, error) {
	lines, err := relay.Collect(a.relay.Drain(ctx))
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}
	return string(bytes.Join(lines, []byte("\n"))) + "\n", nil
}

// Flush waits until every enqueued sample has reached the collector worker.
func (a *Aggregator) Flush() {
	a.relay.Flush()
}

// Pending returns the number of samples not yet handed to the collector.
func (a *Aggregator) Pending() int {
	return a.relay.Pending()
}

// Restarts returns how many relay workers recovered from a panic.
func (a *Aggregator) Restarts() int {
	return a.relay.Restarts()
}

// Collector returns the underlying collector, for routes updates and
// gathering.
func (a *Aggregator) Collector() *collector.Collector {
	return a.collector
}

// Check reports whether the aggregator can serve a scrape. It is meant as a
// readiness check.
func (a *Aggregator) Check(ctx context.Context) error {
	if a.relay.Closed() {
		return ErrClosed
	}
	if _, err := a.collector.Render(); err != nil {
		return err
	}
	return ctx.Err()
}

// Close stops the relay workers. Pending samples are discarded.
func (a *Aggregator) Close() error {
	if err := a.relay.Close(); err != nil && !errors.Is(err, relay.ErrClosed) {
		return err
	}
	return nil
}
