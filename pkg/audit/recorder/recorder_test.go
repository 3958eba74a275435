package recorder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/pulse/pkg/audit"
	"mercator-hq/pulse/pkg/audit/storage"
)

// TestRecorder_Record tests that queued records reach storage by Close.
func TestRecorder_Record(t *testing.T) {
	store := storage.NewMemoryStorage()
	r := New(store, Config{Buffer: 10}, nil)

	for i := 0; i < 5; i++ {
		r.Record(&audit.Record{Producer: "web", Status: 200})
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	records, err := store.Query(context.Background(), &audit.Query{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	seen := map[string]bool{}
	for _, rec := range records {
		if rec.ID == "" || rec.Time.IsZero() {
			t.Errorf("expected ID and time to be set, got %+v", rec)
		}
		seen[rec.ID] = true
	}
	if len(seen) != 5 {
		t.Errorf("expected unique IDs, got %d", len(seen))
	}
	if written, dropped, _ := r.Stats(); written != 5 || dropped != 0 {
		t.Errorf("expected 5 written 0 dropped, got %d %d", written, dropped)
	}
}

// blockingStorage blocks Store until release is closed.
type blockingStorage struct {
	*storage.MemoryStorage
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (b *blockingStorage) Store(ctx context.Context, rec *audit.Record) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.MemoryStorage.Store(ctx, rec)
}

// TestRecorder_DropsWhenFull tests that a full queue never blocks.
func TestRecorder_DropsWhenFull(t *testing.T) {
	store := &blockingStorage{
		MemoryStorage: storage.NewMemoryStorage(),
		release:       make(chan struct{}),
		started:       make(chan struct{}),
	}
	r := New(store, Config{Buffer: 1}, nil)

	r.Record(&audit.Record{})
	<-store.started // worker holds the first record
	r.Record(&audit.Record{})
	r.Record(&audit.Record{})

	if _, dropped, _ := r.Stats(); dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", dropped)
	}

	close(store.release)
	_ = r.Close()
	if written, _, _ := r.Stats(); written != 2 {
		t.Errorf("expected 2 written, got %d", written)
	}

	r.Record(&audit.Record{})
	if _, dropped, _ := r.Stats(); dropped != 2 {
		t.Errorf("expected record after Close to be dropped, got %d", dropped)
	}
}

type failingStorage struct{ *storage.MemoryStorage }

func (failingStorage) Store(context.Context, *audit.Record) error { return errors.New("disk full") }

// TestRecorder_StoreFailure tests that write failures are counted.
func TestRecorder_StoreFailure(t *testing.T) {
	r := New(failingStorage{storage.NewMemoryStorage()}, Config{}, nil)
	r.Record(&audit.Record{})
	_ = r.Close()
	if _, _, failed := r.Stats(); failed != 1 {
		t.Errorf("expected 1 failed, got %d", failed)
	}
}

// TestBodyHasher tests hashing while reading.
func TestBodyHasher(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ""},
		{name: "small", body: `{"_type":"Custom","name":"deploys","type":"Counter"}`},
		{name: "over limit", body: strings.Repeat("x", MaxHashSize+10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBodyHasher(strings.NewReader(tt.body))
			got, err := io.ReadAll(h)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if !bytes.Equal(got, []byte(tt.body)) {
				t.Error("expected body to pass through unchanged")
			}
			if h.Bytes() != int64(len(tt.body)) {
				t.Errorf("expected %d bytes, got %d", len(tt.body), h.Bytes())
			}
			if want := HashContent([]byte(tt.body)); h.Sum() != want {
				t.Errorf("expected hash %q, got %q", want, h.Sum())
			}
		})
	}
}

// TestRecorder_CloseIdempotent tests repeated Close calls.
func TestRecorder_CloseIdempotent(t *testing.T) {
	r := New(storage.NewMemoryStorage(), Config{WriteTimeout: time.Second}, nil)
	_ = r.Close()
	if err := r.Close(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
