package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"gitfeed/internal"
	"gitfeed/pkg/events"
)

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{"serve": false, "tail": false, "normalize": false, "follow": false}
	for _, c := range rootCmd.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := expected[name]; ok {
			expected[name] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("expected command %q to be registered with root command", name)
		}
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		cfgFile = "config.yaml"
		tailLimit = 10
		normalizeEvent = ""
		followDrivers = nil
		followTopics = nil
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "push.json")
	payload := `{"ref":"refs/heads/main","after":"abc","head_commit":{"timestamp":"2024-03-01T10:00:00Z"},"pusher":{"name":"alice"}}`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	out, err := run(t, "normalize", "--event", "push", path)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	var record events.Event
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if record.Author != "alice" || record.Action != events.ActionPush || record.ToBranch != "main" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestNormalizeCommandRejectsUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issue.json")
	if err := os.WriteFile(path, []byte(`{"action":"opened"}`), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	if _, err := run(t, "normalize", "--event", "issues", path); err == nil {
		t.Fatalf("expected error for unsupported event")
	}
}

func TestTailCommand(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()
	dsn := filepath.Join(dir, "events.db")
	storageCfg := internal.StorageConfig{Driver: "sqlite", DSN: dsn, Table: "events", AutoMigrate: true}

	store, err := internal.OpenEventStore(storageCfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, author := range []string{"alice", "bob", "carol"} {
		record := &events.Event{Author: author, Action: events.ActionPush, ToBranch: "main", Timestamp: base.Add(time.Duration(i) * time.Hour)}
		if err := store.Save(context.Background(), record); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	store.Close()

	configPath := filepath.Join(dir, "config.yaml")
	config := fmt.Sprintf("storage:\n  driver: sqlite\n  dsn: %s\n  auto_migrate: true\n", dsn)
	if err := os.WriteFile(configPath, []byte(config), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := run(t, "--config", configPath, "tail", "-n", "2")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "bob pushed to main") || !strings.Contains(lines[1], "carol pushed to main") {
		t.Fatalf("unexpected tail output %q", out)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := run(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "tail"); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestSubscriberConfigFromNotify(t *testing.T) {
	notify := internal.NotifyConfig{
		Drivers: []string{"kafka", "http", "gochannel", "riverqueue", "nats"},
		Kafka:   internal.KafkaConfig{Brokers: []string{"localhost:9092"}},
		NATS:    internal.NATSConfig{URL: "nats://localhost:4222", Name: "gitfeed"},
	}
	cfg := subscriberConfig(notify, nil, "group-a")
	if len(cfg.Drivers) != 2 || cfg.Drivers[0] != "kafka" || cfg.Drivers[1] != "nats" {
		t.Fatalf("expected publish-only and in-process drivers dropped, got %v", cfg.Drivers)
	}
	if cfg.Group != "group-a" || cfg.NATS.Name != "gitfeed-follow" {
		t.Fatalf("unexpected subscriber config %+v", cfg)
	}

	cfg = subscriberConfig(notify, []string{"amqp"}, "g")
	if len(cfg.Drivers) != 1 || cfg.Drivers[0] != "amqp" {
		t.Fatalf("expected driver override, got %v", cfg.Drivers)
	}
}

func TestFollowRejectsInProcessDrivers(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	config := "notify:\n  drivers: [gochannel, http]\n"
	if err := os.WriteFile(configPath, []byte(config), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := run(t, "--config", configPath, "follow")
	if err == nil || !strings.Contains(err.Error(), "no subscribable notify drivers") {
		t.Fatalf("expected follow to reject gochannel-only config, got %v", err)
	}
}

func TestNotifyTopics(t *testing.T) {
	config := internal.Config{Notify: internal.NotifyConfig{Topic: "gitfeed.events"}}
	if topics := notifyTopics(config); len(topics) != 1 || topics[0] != "gitfeed.events" {
		t.Fatalf("expected default topic, got %v", topics)
	}

	config.Rules = []internal.Rule{
		{When: "true", Emit: internal.EmitList{"pushes", "all"}},
		{When: "true", Emit: internal.EmitList{"all"}},
	}
	topics := notifyTopics(config)
	if len(topics) != 2 || topics[0] != "pushes" || topics[1] != "all" {
		t.Fatalf("expected rule topics, got %v", topics)
	}
}
