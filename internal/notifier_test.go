package internal

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"gitfeed/pkg/events"
)

type recordingPublisher struct {
	mu      sync.Mutex
	topics  []string
	drivers [][]string
	err     error
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, n Notification) error {
	return r.PublishForDrivers(ctx, topic, n, nil)
}

func (r *recordingPublisher) PublishForDrivers(ctx context.Context, topic string, n Notification, drivers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.drivers = append(r.drivers, drivers)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func TestNotifierDefaultTopic(t *testing.T) {
	engine, err := NewRuleEngine(nil, "gitfeed.events", nil)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}
	pub := &recordingPublisher{}
	n := NewNotifier(engine, pub, log.New(&bytes.Buffer{}, "", 0))

	n.Notify(context.Background(), "push", "req-1", events.Event{Author: "alice", Action: events.ActionPush}, nil)
	if len(pub.topics) != 1 || pub.topics[0] != "gitfeed.events" {
		t.Fatalf("expected default topic, got %v", pub.topics)
	}
}

func TestNotifierRulesOnPayload(t *testing.T) {
	rules := []Rule{
		{When: `[payload.repository.full_name] == "octo/repo"`, Emit: EmitList{"octo"}, Drivers: []string{"nats"}},
		{When: `action == "MERGE"`, Emit: EmitList{"merges"}},
	}
	engine, err := NewRuleEngine(rules, "", nil)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}
	pub := &recordingPublisher{}
	n := NewNotifier(engine, pub, log.New(&bytes.Buffer{}, "", 0))

	raw := []byte(`{"repository":{"full_name":"octo/repo"}}`)
	n.Notify(context.Background(), "push", "", events.Event{Author: "alice", Action: events.ActionPush}, raw)
	if len(pub.topics) != 1 || pub.topics[0] != "octo" {
		t.Fatalf("expected octo topic, got %v", pub.topics)
	}
	if len(pub.drivers[0]) != 1 || pub.drivers[0][0] != "nats" {
		t.Fatalf("expected nats driver, got %v", pub.drivers[0])
	}
}

func TestNotifierLogsFailures(t *testing.T) {
	engine, _ := NewRuleEngine(nil, "gitfeed.events", nil)
	pub := &recordingPublisher{err: errors.New("unreachable")}
	var buf bytes.Buffer
	n := NewNotifier(engine, pub, log.New(&buf, "", 0))

	n.Notify(context.Background(), "push", "req-9", events.Event{Author: "alice", Action: events.ActionPush}, nil)
	out := buf.String()
	if !strings.Contains(out, "publish failed") || !strings.Contains(out, "request_id=req-9") {
		t.Fatalf("expected failure log with request id, got %q", out)
	}
}

func TestNilNotifier(t *testing.T) {
	var n *Notifier
	n.Notify(context.Background(), "push", "", events.Event{}, nil)
	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	n, err := NewNotifierFromConfig(Config{}, nil)
	if err != nil || n != nil {
		t.Fatalf("expected nil notifier without drivers, got %v, %v", n, err)
	}
}
