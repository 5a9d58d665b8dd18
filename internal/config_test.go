package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadConfigDefaults tests that the default values are applied correctly when loading a config.
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.GitHub.Path != "/webhook" {
		t.Fatalf("expected default github path, got %q", cfg.GitHub.Path)
	}
	if cfg.Storage.Driver != "memory" || cfg.Storage.Table != "events" {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Feed.DefaultLimit != 10 || cfg.Feed.MaxLimit != 100 || cfg.Feed.PollIntervalSeconds != 15 {
		t.Fatalf("unexpected feed defaults %+v", cfg.Feed)
	}
	if len(cfg.Notify.Drivers) != 0 {
		t.Fatalf("expected no default drivers, got %v", cfg.Notify.Drivers)
	}
	if cfg.Notify.Topic != "gitfeed.events" {
		t.Fatalf("expected default topic, got %q", cfg.Notify.Topic)
	}
	if cfg.Notify.GoChannel.OutputChannelBuffer != 64 {
		t.Fatalf("expected default gochannel output buffer, got %d", cfg.Notify.GoChannel.OutputChannelBuffer)
	}
	if cfg.Notify.HTTP.Mode != "topic_url" {
		t.Fatalf("expected default http mode topic_url, got %q", cfg.Notify.HTTP.Mode)
	}
	if cfg.Server.MetricsPath != "/debug/vars" {
		t.Fatalf("expected default metrics path, got %q", cfg.Server.MetricsPath)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("GITFEED_TEST_SECRET", "s3cret")
	t.Setenv("GITFEED_TEST_DSN", "postgres://db/events")
	cfg, err := LoadConfig(writeConfig(t, `
github:
  secret: ${GITFEED_TEST_SECRET}
storage:
  driver: postgres
  dsn: ${GITFEED_TEST_DSN}
feed:
  default_limit: 500
  max_limit: 50
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.GitHub.Secret != "s3cret" {
		t.Fatalf("expected expanded secret, got %q", cfg.GitHub.Secret)
	}
	if cfg.Storage.DSN != "postgres://db/events" {
		t.Fatalf("expected expanded dsn, got %q", cfg.Storage.DSN)
	}
	if cfg.Feed.DefaultLimit != 50 {
		t.Fatalf("expected default limit capped to max, got %d", cfg.Feed.DefaultLimit)
	}
}

// TestLoadConfigInvalidRule tests that loading a config with an invalid rule returns an error.
func TestLoadConfigInvalidRule(t *testing.T) {
	path := writeConfig(t, "rules:\n  - when: action == \"MERGE\"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for missing emit")
	}
}

func TestLoadConfigNormalizesRules(t *testing.T) {
	path := writeConfig(t, `
rules:
  - when: "  action == 'PUSH'  "
    emit: [" pushes ", ""]
    drivers: [" Kafka ", ""]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Rules) != 1 {
		t.Fatalf("expected one rule, got %d", len(cfg.Rules))
	}
	rule := cfg.Rules[0]
	if rule.When != "action == 'PUSH'" {
		t.Fatalf("expected trimmed when, got %q", rule.When)
	}
	if len(rule.Emit) != 1 || rule.Emit[0] != "pushes" {
		t.Fatalf("expected trimmed emit, got %v", rule.Emit)
	}
	if len(rule.Drivers) != 1 || rule.Drivers[0] != "kafka" {
		t.Fatalf("expected normalized drivers, got %v", rule.Drivers)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "topsecret")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgresql://user@db/events")
	t.Setenv("REDIS_ADDR", "")

	cfg := ConfigFromEnv()
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port from env, got %d", cfg.Server.Port)
	}
	if cfg.GitHub.Secret != "topsecret" {
		t.Fatalf("expected secret from env")
	}
	if cfg.Storage.Driver != "postgres" {
		t.Fatalf("expected driver inferred from dsn, got %q", cfg.Storage.Driver)
	}
	if !cfg.Storage.AutoMigrate {
		t.Fatalf("expected auto migrate from env config")
	}
	if cfg.Feed.DefaultLimit != 10 {
		t.Fatalf("expected defaults applied")
	}
}

func TestDriverFromDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://u@h/db":             "postgres",
		"PostgreSQL://u@h/db":           "postgres",
		"redis://localhost:6379/0":      "redis",
		"rediss://cache:6380":           "redis",
		"user:pass@tcp(db:3306)/events": "mysql",
		"file:events.db":                "sqlite",
	}
	for dsn, want := range cases {
		if got := driverFromDSN(dsn); got != want {
			t.Fatalf("driverFromDSN(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("GITFEED_DOTENV_VALUE=from-file\nGITFEED_DOTENV_KEPT=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", envPath)
	t.Setenv("GITFEED_DOTENV_KEPT", "exported")
	os.Unsetenv("GITFEED_DOTENV_VALUE")
	t.Cleanup(func() { os.Unsetenv("GITFEED_DOTENV_VALUE") })

	LoadDotenv()

	if got := os.Getenv("GITFEED_DOTENV_VALUE"); got != "from-file" {
		t.Fatalf("expected value from env file, got %q", got)
	}
	if got := os.Getenv("GITFEED_DOTENV_KEPT"); got != "exported" {
		t.Fatalf("expected exported value to win, got %q", got)
	}
}
