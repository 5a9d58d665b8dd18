package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the full application configuration.
type Config struct {
	// Server holds HTTP server configuration.
	Server ServerConfig `yaml:"server"`
	// GitHub configures the webhook receiver.
	GitHub GitHubConfig `yaml:"github"`
	// Storage selects the event store backend.
	Storage StorageConfig `yaml:"storage"`
	// Feed configures the read side and the polling page.
	Feed FeedConfig `yaml:"feed"`
	// Notify configures broker fan-out of stored events.
	Notify NotifyConfig `yaml:"notify"`
	// Rules route stored events to notification topics.
	Rules []Rule `yaml:"rules"`
}

type ServerConfig struct {
	Port               int      `yaml:"port"`
	ReadTimeoutMS      int64    `yaml:"read_timeout_ms"`
	WriteTimeoutMS     int64    `yaml:"write_timeout_ms"`
	IdleTimeoutMS      int64    `yaml:"idle_timeout_ms"`
	ReadHeaderMS       int64    `yaml:"read_header_timeout_ms"`
	MaxBodyBytes       int64    `yaml:"max_body_bytes"`
	RateLimitRPS       float64  `yaml:"rate_limit_rps"`
	RateLimitBurst     int      `yaml:"rate_limit_burst"`
	MetricsEnabled     bool     `yaml:"metrics_enabled"`
	MetricsPath        string   `yaml:"metrics_path"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// GitHubConfig configures the GitHub webhook endpoint.
type GitHubConfig struct {
	Path string `yaml:"path"`
	// Secret enables HMAC signature checks when set.
	Secret string `yaml:"secret"`
}

// StorageConfig selects and configures the event store.
type StorageConfig struct {
	Driver      string      `yaml:"driver"`
	DSN         string      `yaml:"dsn"`
	Table       string      `yaml:"table"`
	AutoMigrate bool        `yaml:"auto_migrate"`
	Redis       RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// FeedConfig configures GET /events and the index page.
type FeedConfig struct {
	DefaultLimit        int `yaml:"default_limit"`
	MaxLimit            int `yaml:"max_limit"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// NotifyConfig holds configuration for stored-event notifications.
type NotifyConfig struct {
	Drivers      []string           `yaml:"drivers"`
	Topic        string             `yaml:"topic"`
	GoChannel    GoChannelConfig    `yaml:"gochannel"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	NATS         NATSConfig         `yaml:"nats"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	SQL          SQLConfig          `yaml:"sql"`
	HTTP         HTTPConfig         `yaml:"http"`
	RiverQueue   RiverQueueConfig   `yaml:"riverqueue"`
	ConnectRetry ConnectRetryConfig `yaml:"connect_retry"`
}

// GoChannelConfig holds configuration for the in-process GoChannel pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer int64 `yaml:"output_buffer"`
	Persistent          bool  `yaml:"persistent"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type NATSConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// AMQPConfig holds configuration for the AMQP publisher.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the Watermill SQL publisher.
type SQLConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	Dialect          string `yaml:"dialect"`
	InitializeSchema bool   `yaml:"initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP publisher.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// RiverQueueConfig holds configuration for the RiverQueue job publisher.
type RiverQueueConfig struct {
	Driver      string   `yaml:"driver"`
	DSN         string   `yaml:"dsn"`
	Table       string   `yaml:"table"`
	Queue       string   `yaml:"queue"`
	Kind        string   `yaml:"kind"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

// ConnectRetryConfig bounds how long broker clients are retried at startup.
type ConnectRetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// LoadDotenv loads variables from .env files without overriding exported ones.
// ENV_FILE may name one or more comma-separated files.
func LoadDotenv() {
	if v := strings.TrimSpace(os.Getenv("ENV_FILE")); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		_ = godotenv.Load(parts...)
		return
	}
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// LoadConfig loads the configuration from a YAML file.
// It expands environment variables, validates rules and applies defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	normalized, err := normalizeRules(cfg.Rules)
	if err != nil {
		return cfg, err
	}
	cfg.Rules = normalized
	applyDefaults(&cfg)
	return cfg, nil
}

// ConfigFromEnv builds a configuration from defaults and environment variables
// only. It is used when no config file is present.
func ConfigFromEnv() Config {
	var cfg Config
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	cfg.GitHub.Secret = os.Getenv("GITHUB_WEBHOOK_SECRET")
	cfg.Storage.Driver = strings.TrimSpace(os.Getenv("STORAGE_DRIVER"))
	cfg.Storage.DSN = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.Storage.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if cfg.Storage.Driver == "" && cfg.Storage.DSN != "" {
		cfg.Storage.Driver = driverFromDSN(cfg.Storage.DSN)
	}
	cfg.Storage.AutoMigrate = true
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/debug/vars"
	}
	if cfg.GitHub.Path == "" {
		cfg.GitHub.Path = "/webhook"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.Table == "" {
		cfg.Storage.Table = "events"
	}
	if cfg.Feed.DefaultLimit == 0 {
		cfg.Feed.DefaultLimit = 10
	}
	if cfg.Feed.MaxLimit == 0 {
		cfg.Feed.MaxLimit = 100
	}
	if cfg.Feed.DefaultLimit > cfg.Feed.MaxLimit {
		cfg.Feed.DefaultLimit = cfg.Feed.MaxLimit
	}
	if cfg.Feed.PollIntervalSeconds == 0 {
		cfg.Feed.PollIntervalSeconds = 15
	}
	if cfg.Notify.Topic == "" {
		cfg.Notify.Topic = "gitfeed.events"
	}
	if cfg.Notify.GoChannel.OutputChannelBuffer == 0 {
		cfg.Notify.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Notify.HTTP.Mode == "" {
		cfg.Notify.HTTP.Mode = "topic_url"
	}
	if cfg.Notify.NATS.Name == "" {
		cfg.Notify.NATS.Name = "gitfeed"
	}
	if cfg.Notify.RiverQueue.Table == "" {
		cfg.Notify.RiverQueue.Table = "river_job"
	}
	if cfg.Notify.RiverQueue.Queue == "" {
		cfg.Notify.RiverQueue.Queue = "default"
	}
	if cfg.Notify.RiverQueue.Kind == "" {
		cfg.Notify.RiverQueue.Kind = "gitfeed.event"
	}
	if cfg.Notify.RiverQueue.MaxAttempts == 0 {
		cfg.Notify.RiverQueue.MaxAttempts = 25
	}
	if cfg.Notify.RiverQueue.Priority == 0 {
		cfg.Notify.RiverQueue.Priority = 1
	}
	if cfg.Notify.ConnectRetry.Attempts == 0 {
		cfg.Notify.ConnectRetry.Attempts = 3
	}
	if cfg.Notify.ConnectRetry.DelayMS == 0 {
		cfg.Notify.ConnectRetry.DelayMS = 500
	}
}

func driverFromDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "redis://"), strings.HasPrefix(lower, "rediss://"):
		return "redis"
	case strings.Contains(lower, "@tcp("):
		return "mysql"
	default:
		return "sqlite"
	}
}

func normalizeRules(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for i := range rules {
		rule := rules[i]
		rule.When = strings.TrimSpace(rule.When)
		emit := make([]string, 0, len(rule.Emit))
		for _, topic := range rule.Emit {
			if trimmed := strings.TrimSpace(topic); trimmed != "" {
				emit = append(emit, trimmed)
			}
		}
		rule.Emit = emit
		if rule.When == "" || len(rule.Emit) == 0 {
			return nil, fmt.Errorf("rule %d is missing when or emit", i)
		}
		if len(rule.Drivers) > 0 {
			drivers := make([]string, 0, len(rule.Drivers))
			for _, driver := range rule.Drivers {
				trimmed := strings.ToLower(strings.TrimSpace(driver))
				if trimmed != "" {
					drivers = append(drivers, trimmed)
				}
			}
			rule.Drivers = drivers
		}
		out = append(out, rule)
	}
	return out, nil
}
