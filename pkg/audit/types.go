package audit

import (
	"context"
	"time"
)

// Record is one ingestion request.
type Record struct {
	ID              string        `json:"id"`
	RequestID       string        `json:"request_id"`
	Time            time.Time     `json:"time"`
	Producer        string        `json:"producer"`
	RemoteAddr      string        `json:"remote_addr"`
	Status          int           `json:"status"`
	Accepted        int           `json:"accepted"`
	Bytes           int64         `json:"bytes"`
	ContentEncoding string        `json:"content_encoding,omitempty"`
	BodyHash        string        `json:"body_hash,omitempty"`
	Duration        time.Duration `json:"duration"`
	Error           string        `json:"error,omitempty"`
}

// Query filters records. Zero fields match everything.
type Query struct {
	// Producer matches exactly.
	Producer string

	// StartTime and EndTime bound Record.Time, inclusive and exclusive.
	StartTime *time.Time
	EndTime   *time.Time

	// FailedOnly matches records with a non-2xx status.
	FailedOnly bool

	// Limit caps the result; 0 uses DefaultLimit. Results are newest first.
	Limit  int
	Offset int
}

// DefaultLimit is the Query limit when none is given.
const DefaultLimit = 100

// Matches reports whether r satisfies the filters of q, ignoring paging.
func (q *Query) Matches(r *Record) bool {
	if q.Producer != "" && r.Producer != q.Producer {
		return false
	}
	if q.StartTime != nil && r.Time.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && !r.Time.Before(*q.EndTime) {
		return false
	}
	if q.FailedOnly && r.Status >= 200 && r.Status < 300 {
		return false
	}
	return true
}

// Storage persists audit records. Implementations are safe for
// concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns matching records, newest first.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of matching records.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes matching records and returns how many were removed.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Trim keeps the newest keep records and removes the rest.
	Trim(ctx context.Context, keep int64) (int64, error)

	// Close releases the backend.
	Close() error
}
