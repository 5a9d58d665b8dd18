package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gitfeed/pkg/events"
	"gitfeed/pkg/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "events.db")
	store, err := Open(Config{Driver: "sqlite", DSN: dsn, AutoMigrate: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestStoreSaveAndListRecent tests that records round-trip and come back newest first.
func TestStoreSaveAndListRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

	inputs := []events.Event{
		{Author: "alice", Action: events.ActionPush, ToBranch: "main", Timestamp: base},
		{Author: "bob", Action: events.ActionPullRequest, FromBranch: "feature/x", ToBranch: "main", Timestamp: base.Add(2 * time.Minute)},
		{Author: "carol", Action: events.ActionMerge, FromBranch: "feature/x", ToBranch: "main", Timestamp: base.Add(time.Minute)},
	}
	for i := range inputs {
		inputs[i].ReceivedAt = base.Add(time.Hour)
		if err := store.Save(ctx, &inputs[i]); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		if inputs[i].ID == "" {
			t.Fatalf("expected id for record %d", i)
		}
	}

	recent, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Author != "bob" || recent[1].Author != "carol" {
		t.Fatalf("unexpected order: %q, %q", recent[0].Author, recent[1].Author)
	}
	if recent[0].Action != events.ActionPullRequest || recent[0].FromBranch != "feature/x" {
		t.Fatalf("unexpected record: %+v", recent[0])
	}
	if !recent[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected timestamp %s", recent[0].Timestamp)
	}
}

// TestStoreListRecentEmpty tests that an empty table yields an empty slice.
func TestStoreListRecentEmpty(t *testing.T) {
	store := openTestStore(t)
	recent, err := store.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected no records, got %d", len(recent))
	}
}

// TestStoreSaveInvalid tests that invalid records never reach the table.
func TestStoreSaveInvalid(t *testing.T) {
	store := openTestStore(t)
	record := events.Event{Author: "", Action: events.ActionPush}
	if err := store.Save(context.Background(), &record); !errors.Is(err, events.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

// TestStoreSaveAfterClose tests that a closed database surfaces as unavailable.
func TestStoreSaveAfterClose(t *testing.T) {
	store := openTestStore(t)
	_ = store.Close()
	record := events.Event{Author: "alice", Action: events.ActionPush, ToBranch: "main"}
	if err := store.Save(context.Background(), &record); !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if NormalizeDriver("PostgreSQL") != "postgres" {
		t.Fatalf("expected postgres alias")
	}
}
