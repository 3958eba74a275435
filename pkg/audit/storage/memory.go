package storage

import (
	"context"
	"slices"
	"sync"

	"mercator-hq/pulse/pkg/audit"
)

// MemoryStorage keeps records in memory. It backs tests and the "memory"
// driver; records are lost on restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*audit.Record
	closed  bool
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store implements audit.Storage.
func (s *MemoryStorage) Store(_ context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audit.ErrClosed
	}
	c := *record
	s.records = append(s.records, &c)
	return nil
}

// Query implements audit.Storage.
func (s *MemoryStorage) Query(_ context.Context, q *audit.Query) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*audit.Record
	for _, r := range s.newestFirst() {
		if q.Matches(r) {
			c := *r
			matched = append(matched, &c)
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = audit.DefaultLimit
	}
	if q.Offset >= len(matched) {
		return []*audit.Record{}, nil
	}
	matched = matched[q.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Count implements audit.Storage.
func (s *MemoryStorage) Count(_ context.Context, q *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if q.Matches(r) {
			n++
		}
	}
	return n, nil
}

// Delete implements audit.Storage.
func (s *MemoryStorage) Delete(_ context.Context, q *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, q.Matches)
	return int64(before - len(s.records)), nil
}

// Trim implements audit.Storage.
func (s *MemoryStorage) Trim(_ context.Context, keep int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	excess := int64(len(s.records)) - keep
	if excess <= 0 {
		return 0, nil
	}
	ordered := s.newestFirst()
	s.records = ordered[:keep]
	slices.Reverse(s.records)
	return excess, nil
}

// Close implements audit.Storage.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// newestFirst returns records sorted by time descending; ties keep the
// later insertion first. Caller must hold a lock.
func (s *MemoryStorage) newestFirst() []*audit.Record {
	out := slices.Clone(s.records)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b *audit.Record) int {
		return b.Time.Compare(a.Time)
	})
	return out
}
