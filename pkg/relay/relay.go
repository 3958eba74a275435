package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultWatermark is the pending depth above which enqueues are reported.
const DefaultWatermark = 10_000

var (
	// ErrClosed is returned by operations on a closed relay.
	ErrClosed = errors.New("relay closed")

	// ErrInvalidMaxRetained is returned by New for a negative window size.
	ErrInvalidMaxRetained = errors.New("max retained must be >= 0")

	// ErrDrainConsumed is yielded when a drain sequence is iterated twice.
	ErrDrainConsumed = errors.New("drain sequence already consumed")
)

// Options configures a Relay. The zero value is valid.
type Options[T any] struct {
	// Transform filters or rewrites each item before it is retained. A false
	// result drops the item.
	Transform func(T) (T, bool)

	// Report post-processes a drained batch.
	Report func([]T) []T

	// Watermark overrides DefaultWatermark.
	Watermark int

	Logger   *slog.Logger
	Observer Observer
}

// Relay is a many-producer, single-consumer pipe retaining the most recent
// maxRetained accepted items. At most one Drain runs at a time.
type Relay[T any] struct {
	maxRetained int
	transform   func(T) (T, bool)
	report      func([]T) []T
	watermark   int
	logger      *slog.Logger
	observer    Observer

	supply *Channel
	reply  *Channel
	token  []byte

	queue    *queue[T]
	pending  atomic.Int64
	flooded  atomic.Bool
	restarts atomic.Int64

	producerMu    sync.Mutex
	producerAlive bool

	// window is owned by the consumer goroutine.
	window []T

	// drainSem holds one token per outstanding drain, including one being
	// settled in the background. seq is guarded by it.
	drainSem chan struct{}
	seq      uint64

	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a relay and starts its consumer.
func New[T any](maxRetained int, opts Options[T]) (*Relay[T], error) {
	if maxRetained < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxRetained, maxRetained)
	}

	supply, err := NewChannel()
	if err != nil {
		return nil, fmt.Errorf("create supply channel: %w", err)
	}
	reply, err := NewChannel()
	if err != nil {
		_ = supply.Close()
		return nil, fmt.Errorf("create reply channel: %w", err)
	}

	token := uuid.New()
	r := &Relay[T]{
		maxRetained: maxRetained,
		transform:   opts.Transform,
		report:      opts.Report,
		watermark:   opts.Watermark,
		logger:      opts.Logger,
		observer:    opts.Observer,
		supply:      supply,
		reply:       reply,
		token:       token[:],
		queue:       newQueue[T](),
		drainSem:    make(chan struct{}, 1),
	}
	if r.watermark <= 0 {
		r.watermark = DefaultWatermark
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "relay")
	if r.observer == nil {
		r.observer = NopObserver{}
	}

	r.wg.Add(1)
	go r.consume()

	return r, nil
}

// Enqueue hands item to the relay without waiting for the consumer. The
// pending queue is unbounded; crossing the watermark is reported but never
// drops anything.
func (r *Relay[T]) Enqueue(item T) error {
	if r.closed.Load() {
		return ErrClosed
	}

	depth := int(r.pending.Add(1))
	if !r.queue.push(item) {
		r.pending.Add(-1)
		return ErrClosed
	}

	r.observer.ItemEnqueued(depth)
	r.checkWatermark(depth)
	r.ensureProducer()
	return nil
}

func (r *Relay[T]) checkWatermark(depth int) {
	if depth <= r.watermark {
		r.flooded.Store(false)
		return
	}
	r.observer.WatermarkExceeded(depth)
	if r.flooded.CompareAndSwap(false, true) {
		r.logger.Warn("pending queue above watermark",
			"depth", depth,
			"watermark", r.watermark,
		)
	}
}

// Pending returns the number of enqueued items not yet written to the
// consumer.
func (r *Relay[T]) Pending() int {
	return int(r.pending.Load())
}

// Restarts returns how many times a worker recovered from a panic.
func (r *Relay[T]) Restarts() int {
	return int(r.restarts.Load())
}

// Closed reports whether Close has been called.
func (r *Relay[T]) Closed() bool {
	return r.closed.Load()
}

// Flush blocks until every enqueued item has been handed to the consumer or
// the relay is closed.
func (r *Relay[T]) Flush() {
	for r.pending.Load() > 0 && !r.closed.Load() {
		r.ensureProducer()
		time.Sleep(time.Millisecond)
	}
}

// Drain asks the consumer for the retained window and yields the reported
// batch. The sequence can be iterated once. Breaking out early is allowed.
//
// The context bounds the whole exchange, including the wait for a previous
// drain. On expiry the sequence yields the context error; after Close it
// yields ErrClosed. A drain that stops before reading its whole reply leaves
// the rest to a background reader, so the consumer is never stuck writing a
// reply nobody reads.
func (r *Relay[T]) Drain(ctx context.Context) iter.Seq2[T, error] {
	var used atomic.Bool
	return func(yield func(T, error) bool) {
		var zero T
		if !used.CompareAndSwap(false, true) {
			yield(zero, ErrDrainConsumed)
			return
		}

		select {
		case r.drainSem <- struct{}{}:
		case <-ctx.Done():
			yield(zero, ctx.Err())
			return
		}

		if r.closed.Load() {
			<-r.drainSem
			yield(zero, ErrClosed)
			return
		}
		if err := ctx.Err(); err != nil {
			<-r.drainSem
			yield(zero, err)
			return
		}

		r.seq++
		d := &exchange[T]{relay: r, seq: r.seq, sent: make(chan error, 1), remaining: -1}
		go func() {
			d.sent <- r.write(r.supply, envelope[T]{Kind: frameDrain, Token: r.token, Seq: d.seq})
		}()

		err := d.run(ctx, yield)
		if d.outstanding() {
			go d.settle()
		} else {
			<-r.drainSem
		}
		if err != nil && !d.stopped {
			yield(zero, err)
		}
	}
}

// exchange tracks one request/reply exchange.
type exchange[T any] struct {
	relay *Relay[T]
	seq   uint64

	// sent delivers the result of the request write; nil once received.
	sent chan error
	// remaining is the number of reply items not yet read, or -1 before the
	// header has been read.
	remaining int
	// abandoned is set when nothing more will arrive for seq.
	abandoned bool
	// stopped is set when the caller broke out of the sequence.
	stopped bool
}

func (d *exchange[T]) run(ctx context.Context, yield func(T, error) bool) error {
	r := d.relay
	release := r.bindDeadline(ctx)
	defer release()

	select {
	case err := <-d.sent:
		d.sent = nil
		if err != nil {
			d.abandoned = true
			return r.drainError(ctx, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	count, err := r.awaitHeader(d.seq)
	if err != nil {
		return r.drainError(ctx, err)
	}
	d.remaining = count

	for d.remaining > 0 {
		env, err := r.readReply()
		if err != nil {
			return r.drainError(ctx, err)
		}
		if env.Kind != frameReply || env.Seq != d.seq {
			d.abandoned = true
			return fmt.Errorf("relay: unexpected %s frame for drain %d", env.Kind, d.seq)
		}
		d.remaining--
		if !yield(env.Item, nil) {
			d.stopped = true
			return nil
		}
	}
	return nil
}

// outstanding reports whether part of the exchange is still in flight.
func (d *exchange[T]) outstanding() bool {
	if d.abandoned || d.relay.closed.Load() {
		return false
	}
	return d.sent != nil || d.remaining != 0
}

// settle finishes an exchange its caller gave up on: it waits for the
// request to be written, then reads and discards the reply. It holds the
// drain slot until done.
func (d *exchange[T]) settle() {
	r := d.relay
	defer func() { <-r.drainSem }()

	r.logger.Debug("settling abandoned drain", "seq", d.seq, "remaining", d.remaining)
	if d.sent != nil {
		if err := <-d.sent; err != nil {
			return
		}
	}
	if d.remaining < 0 {
		count, err := r.awaitHeader(d.seq)
		if err != nil {
			return
		}
		d.remaining = count
	}
	for ; d.remaining > 0; d.remaining-- {
		if _, err := r.readReply(); err != nil {
			return
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

// bindDeadline applies ctx to reads on the reply side and returns a function
// restoring the unbounded state.
func (r *Relay[T]) bindDeadline(ctx context.Context) func() {
	deadline, _ := ctx.Deadline()
	_ = r.reply.SetReadDeadline(deadline)

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = r.reply.SetReadDeadline(time.Unix(1, 0))
	})

	return func() {
		if !stop() {
			<-fired
		}
		_ = r.reply.SetReadDeadline(time.Time{})
	}
}

// awaitHeader reads reply frames until the header for seq arrives. Frames
// left over from abandoned drains are discarded.
func (r *Relay[T]) awaitHeader(seq uint64) (int, error) {
	for {
		env, err := r.readReply()
		if err != nil {
			return 0, err
		}
		if env.Kind == frameHeader && env.Seq == seq {
			return env.Count, nil
		}
		r.logger.Debug("skipping stale reply frame",
			"kind", env.Kind.String(),
			"seq", env.Seq,
			"want", seq,
		)
	}
}

func (r *Relay[T]) readReply() (envelope[T], error) {
	data, err := r.reply.Read()
	if err != nil {
		return envelope[T]{}, err
	}
	return decodeFrame[T](data)
}

func (r *Relay[T]) drainError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return context.DeadlineExceeded
	}
	if r.closed.Load() || errors.Is(err, ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("drain: %w", err)
}

// Close stops both workers and closes both channels. Pending items are
// discarded. Close is idempotent and an in-flight Drain returns ErrClosed.
// It waits for a running Transform or Report callback to return.
func (r *Relay[T]) Close() error {
	var err error
	r.closeOnce.Do(func() {
		// No producer can start once closed is set under producerMu.
		r.producerMu.Lock()
		r.closed.Store(true)
		r.producerMu.Unlock()

		r.queue.close()
		err = errors.Join(r.supply.Close(), r.reply.Close())
		r.wg.Wait()
	})
	return err
}

func (r *Relay[T]) write(c *Channel, env envelope[T]) error {
	data, err := encodeFrame(env)
	if err != nil {
		return err
	}
	return c.Write(data)
}

func (r *Relay[T]) ensureProducer() {
	r.producerMu.Lock()
	defer r.producerMu.Unlock()

	if r.producerAlive || r.closed.Load() {
		return
	}
	r.producerAlive = true
	r.wg.Add(1)
	go r.produce()
}

func (r *Relay[T]) produce() {
	defer r.wg.Done()
	defer func() {
		r.producerMu.Lock()
		r.producerAlive = false
		r.producerMu.Unlock()
	}()

	for r.runProducer() {
		r.restarts.Add(1)
		r.observer.WorkerRestarted("producer")
	}
}

// runProducer forwards queued items until the queue closes. It reports true
// when it stopped because of a panic.
func (r *Relay[T]) runProducer() (crashed bool) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("producer crashed, restarting", "panic", v)
			crashed = true
		}
	}()

	for {
		item, ok := r.queue.pop()
		if !ok {
			return false
		}
		r.forward(item)
	}
}

func (r *Relay[T]) forward(item T) {
	defer r.pending.Add(-1)

	err := r.write(r.supply, envelope[T]{Kind: frameItem, Item: item})
	if err != nil && !errors.Is(err, ErrClosed) {
		r.logger.Error("failed to forward item", "error", err)
	}
}

func (r *Relay[T]) consume() {
	defer r.wg.Done()

	for r.runConsumer() {
		r.restarts.Add(1)
		r.observer.WorkerRestarted("consumer")
	}
}

// runConsumer processes supply frames until the channel closes. It reports
// true when it stopped because of a panic or a read failure.
func (r *Relay[T]) runConsumer() (crashed bool) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("consumer crashed, restarting", "panic", v)
			crashed = true
		}
	}()

	for {
		data, err := r.supply.Read()
		if err != nil {
			if errors.Is(err, ErrClosed) || r.closed.Load() {
				return false
			}
			r.logger.Error("supply read failed, restarting", "error", err)
			return true
		}

		env, err := decodeFrame[T](data)
		if err != nil {
			r.logger.Warn("dropping undecodable frame", "error", err, "bytes", len(data))
			continue
		}

		switch env.Kind {
		case frameItem:
			r.accept(env.Item)
		case frameDrain:
			if !bytes.Equal(env.Token, r.token) {
				r.logger.Warn("ignoring drain request with foreign token", "seq", env.Seq)
				continue
			}
			r.serve(env.Seq)
		default:
			r.logger.Warn("ignoring unexpected frame", "kind", env.Kind.String())
		}
	}
}

func (r *Relay[T]) accept(item T) {
	if r.transform != nil {
		out, ok := r.transform(item)
		if !ok {
			return
		}
		item = out
	}

	r.window = append(r.window, item)
	for len(r.window) > r.maxRetained {
		var zero T
		r.window[0] = zero
		r.window = r.window[1:]
		r.observer.ItemEvicted()
	}
}

func (r *Relay[T]) serve(seq uint64) {
	batch := r.window
	r.window = nil

	out := r.runReport(batch)

	if err := r.write(r.reply, envelope[T]{Kind: frameHeader, Seq: seq, Count: len(out)}); err != nil {
		r.replyFailed(seq, err)
		return
	}
	for _, item := range out {
		if err := r.write(r.reply, envelope[T]{Kind: frameReply, Seq: seq, Item: item}); err != nil {
			r.replyFailed(seq, err)
			return
		}
	}
	r.observer.DrainServed(len(out))
}

// runReport applies the report callback. A panicking callback yields an
// empty batch.
func (r *Relay[T]) runReport(batch []T) (out []T) {
	if r.report == nil {
		return batch
	}
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("report callback panicked, replying with empty batch", "panic", v)
			out = nil
		}
	}()
	return r.report(batch)
}

func (r *Relay[T]) replyFailed(seq uint64, err error) {
	if errors.Is(err, ErrClosed) {
		return
	}
	r.logger.Error("failed to write drain reply", "seq", seq, "error", err)
}
