package storage

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"gitfeed/pkg/events"
)

var (
	// ErrUnavailable wraps failures to reach the backing database.
	ErrUnavailable = errors.New("event store unavailable")
	// ErrNotInitialized is returned by stores used before Open or after Close.
	ErrNotInitialized = errors.New("store is not initialized")
)

// EventStore defines the persistence interface for normalized events.
// Records are append-only: there is no update or delete.
type EventStore interface {
	// Save appends the record, assigning ID when it is empty.
	Save(ctx context.Context, record *events.Event) error
	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]events.Event, error)
	Close() error
}

// Prepare assigns an ID to record when missing and checks its invariants.
// Stores call it before writing.
func Prepare(record *events.Event) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Timestamp = record.Timestamp.UTC()
	record.ReceivedAt = record.ReceivedAt.UTC()
	return nil
}

// SortRecent orders records newest first, breaking timestamp ties by receipt time.
func SortRecent(records []events.Event) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].ReceivedAt.After(records[j].ReceivedAt)
	})
}
