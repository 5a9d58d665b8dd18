package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"gitfeed/internal"
	"gitfeed/pkg/events"
	"gitfeed/pkg/worker"
)

var (
	followDrivers []string
	followTopics  []string
	followGroup   string
)

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Stream stored events from the notification brokers",
	Long: `follow subscribes to the brokers configured under notify and prints every
event notification as it arrives. Topics default to notify.topic plus every
topic emitted by a rule.`,
	Args: cobra.NoArgs,
	RunE: runFollow,
}

func init() {
	followCmd.Flags().StringSliceVar(&followDrivers, "driver", nil, "subscriber drivers (default: notify.drivers)")
	followCmd.Flags().StringSliceVar(&followTopics, "topic", nil, "topics to follow")
	followCmd.Flags().StringVar(&followGroup, "group", "gitfeed-follow", "consumer group for kafka, sql and amqp pub/sub queues")
}

func runFollow(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	subCfg := subscriberConfig(config.Notify, followDrivers, followGroup)
	if len(subCfg.Drivers) == 0 {
		return errors.New("no subscribable notify drivers configured (gochannel, http and riverqueue cannot be followed)")
	}
	topics := followTopics
	if len(topics) == 0 {
		topics = notifyTopics(config)
	}

	out := cmd.OutOrStdout()
	wk, err := worker.NewFromConfig(subCfg,
		worker.WithTopics(topics...),
		worker.WithLogger(internal.NewLogger("follow")),
		worker.WithRetry(worker.Drop{}),
	)
	if err != nil {
		return fmt.Errorf("subscriber: %w", err)
	}
	defer wk.Close()

	printDelivery := func(ctx context.Context, d *worker.Delivery) error {
		label := fmt.Sprintf("%-12s", d.Record.Action)
		if c, ok := actionColors[d.Record.Action]; ok {
			label = c.Sprint(label)
		}
		fmt.Fprintf(out, "%s %s [%s]\n", label, events.Format(d.Record), d.Topic)
		return nil
	}
	for _, topic := range topics {
		wk.HandleTopic(topic, printDelivery)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return wk.Run(ctx)
}

// subscriberConfig maps the notify section to a worker subscriber config.
// http and riverqueue are publish-only, and gochannel lives inside the server
// process, so all three are left out.
func subscriberConfig(cfg internal.NotifyConfig, drivers []string, group string) worker.SubscriberConfig {
	if len(drivers) == 0 {
		drivers = cfg.Drivers
	}
	selected := make([]string, 0, len(drivers))
	for _, driver := range drivers {
		switch strings.ToLower(strings.TrimSpace(driver)) {
		case "http", "riverqueue", "gochannel", "":
			continue
		default:
			selected = append(selected, driver)
		}
	}
	return worker.SubscriberConfig{
		Drivers: selected,
		Group:   group,
		Kafka:   worker.KafkaConfig{Brokers: cfg.Kafka.Brokers},
		NATS:    worker.NATSConfig{URL: cfg.NATS.URL, Name: cfg.NATS.Name + "-follow"},
		AMQP:    worker.AMQPConfig{URL: cfg.AMQP.URL, Mode: cfg.AMQP.Mode},
		SQL: worker.SQLConfig{
			Driver:           cfg.SQL.Driver,
			DSN:              cfg.SQL.DSN,
			Dialect:          cfg.SQL.Dialect,
			InitializeSchema: cfg.SQL.InitializeSchema,
		},
		ConnectAttempts: cfg.ConnectRetry.Attempts,
		ConnectDelayMS:  cfg.ConnectRetry.DelayMS,
	}
}

func notifyTopics(config internal.Config) []string {
	seen := map[string]struct{}{}
	var topics []string
	add := func(topic string) {
		if _, ok := seen[topic]; ok || topic == "" {
			return
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	if len(config.Rules) == 0 {
		add(config.Notify.Topic)
	}
	for _, rule := range config.Rules {
		for _, topic := range rule.Emit {
			add(topic)
		}
	}
	return topics
}
