package ratelimit

import (
	"sync"
	"time"
)

// DefaultIdleTTL is how long an unused producer bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

// Config configures a Limiter. Zero values disable the matching limit.
type Config struct {
	// SamplesPerSecond is the sustained per-producer sample rate.
	SamplesPerSecond float64

	// Burst is the bucket capacity. Zero means twice SamplesPerSecond,
	// at least 1.
	Burst int

	// MaxConcurrent caps simultaneous ingestion requests across producers.
	MaxConcurrent int

	// IdleTTL drops buckets of producers that have been quiet this long.
	IdleTTL time.Duration
}

// Limiter holds one bucket per producer key and the global concurrency
// limit.
type Limiter struct {
	cfg        Config
	concurrent *ConcurrentLimiter
	now        func() time.Time

	mu        sync.Mutex
	buckets   map[string]*TokenBucket
	lastSweep time.Time
}

// New creates a limiter.
func New(cfg Config) *Limiter {
	return newLimiter(cfg, time.Now)
}

func newLimiter(cfg Config, now func() time.Time) *Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(int(2*cfg.SamplesPerSecond), 1)
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	l := &Limiter{
		cfg:       cfg,
		now:       now,
		buckets:   make(map[string]*TokenBucket),
		lastSweep: now(),
	}
	if cfg.MaxConcurrent > 0 {
		l.concurrent = NewConcurrentLimiter(cfg.MaxConcurrent)
	}
	return l
}

// Allow takes n sample tokens from key's bucket. When refused it returns
// how long the producer should wait.
func (l *Limiter) Allow(key string, n int) (bool, time.Duration) {
	if l.cfg.SamplesPerSecond <= 0 {
		return true, 0
	}
	b := l.bucket(key)
	if b.Take(int64(n)) {
		return true, 0
	}
	return false, b.TimeUntilAvailable(int64(n))
}

// Acquire takes a concurrency slot. A successful Acquire must be paired
// with Release.
func (l *Limiter) Acquire() bool {
	if l.concurrent == nil {
		return true
	}
	return l.concurrent.Acquire()
}

// Release returns a concurrency slot.
func (l *Limiter) Release() {
	if l.concurrent != nil {
		l.concurrent.Release()
	}
}

// Producers returns the number of tracked producer buckets.
func (l *Limiter) Producers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) bucket(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.cfg.IdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.idleSince()) >= l.cfg.IdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = newTokenBucket(int64(l.cfg.Burst), l.cfg.SamplesPerSecond, l.now)
		l.buckets[key] = b
	}
	return b
}
