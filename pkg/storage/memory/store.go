// Package memory keeps events in process memory. It backs local runs and tests.
package memory

import (
	"context"
	"sync"

	"gitfeed/pkg/events"
	"gitfeed/pkg/storage"
)

// Store implements storage.EventStore on an in-memory slice.
type Store struct {
	mu      sync.RWMutex
	records []events.Event
	closed  bool
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Save appends the record.
func (s *Store) Save(ctx context.Context, record *events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.Prepare(record); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrNotInitialized
	}
	s.records = append(s.records, *record)
	return nil
}

// ListRecent returns up to limit records, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]events.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, storage.ErrNotInitialized
	}
	// Newest insertions first so equal timestamps keep arrival order reversed.
	out := make([]events.Event, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		out = append(out, s.records[i])
	}
	s.mu.RUnlock()

	if limit <= 0 {
		return []events.Event{}, nil
	}
	storage.SortRecent(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close drops the records; later calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = nil
	return nil
}
