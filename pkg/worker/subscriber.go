package worker

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type subscriberBuilder func(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error)

var subscriberBuilders = map[string]subscriberBuilder{
	"gochannel": buildGoChannelSubscriber,
	"amqp":      buildAMQPSubscriber,
	"kafka":     buildKafkaSubscriber,
	"nats":      buildNATSSubscriber,
	"sql":       buildSQLSubscriber,
}

// SubscriberDrivers lists the driver names BuildSubscriber accepts.
func SubscriberDrivers() []string {
	names := make([]string, 0, len(subscriberBuilders))
	for name := range subscriberBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFromConfig creates a worker reading from the brokers in cfg.
func NewFromConfig(cfg SubscriberConfig, opts ...Option) (*Worker, error) {
	sub, err := BuildSubscriber(cfg)
	if err != nil {
		return nil, err
	}
	return New(append(opts, WithSubscriber(sub))...), nil
}

// BuildSubscriber connects to every driver in cfg. One driver yields its own
// subscriber; several are merged and each message carries a "driver"
// metadata entry naming its source. Drivers that cannot be built are skipped
// unless none remain.
func BuildSubscriber(cfg SubscriberConfig) (message.Subscriber, error) {
	logger := watermill.NewStdLogger(false, false)

	drivers := uniqueStrings(cfg.Drivers)
	if len(drivers) == 0 {
		return nil, errors.New("at least one driver is required")
	}

	subs := make([]namedSubscriber, 0, len(drivers))
	var buildErr error
	for _, driver := range drivers {
		build, ok := subscriberBuilders[driver]
		if !ok {
			buildErr = errors.Join(buildErr, fmt.Errorf("unsupported subscriber driver: %s", driver))
			continue
		}
		sub, err := connectWithRetry(cfg, func() (message.Subscriber, error) {
			return build(cfg, logger)
		})
		if err != nil {
			buildErr = errors.Join(buildErr, fmt.Errorf("%s: %w", driver, err))
			logger.Error("subscriber init failed, skipping driver", err, watermill.LogFields{"driver": driver})
			continue
		}
		subs = append(subs, namedSubscriber{driver: driver, sub: sub})
	}

	switch {
	case len(subs) == 0:
		return nil, buildErr
	case len(drivers) == 1:
		return subs[0].sub, nil
	default:
		return &multiSubscriber{subscribers: subs, bufferSize: cfg.GoChannel.OutputChannelBuffer}, nil
	}
}

func buildGoChannelSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.GoChannel.OutputChannelBuffer,
		Persistent:          cfg.GoChannel.Persistent,
	}, logger), nil
}

func buildAMQPSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if cfg.AMQP.URL == "" {
		return nil, errors.New("amqp url is required")
	}
	amqpCfg, err := amqpSubscriberConfig(cfg.AMQP, cfg.group())
	if err != nil {
		return nil, err
	}
	return wmamqp.NewSubscriber(amqpCfg, logger)
}

// amqpSubscriberConfig mirrors the publisher's modes. Pub/sub queues are named
// "<topic>_<group>" so each group gets its own copy of the exchange.
func amqpSubscriberConfig(cfg AMQPConfig, group string) (wmamqp.Config, error) {
	switch strings.ToLower(cfg.Mode) {
	case "", "durable_queue":
		return wmamqp.NewDurableQueueConfig(cfg.URL), nil
	case "nondurable_queue":
		return wmamqp.NewNonDurableQueueConfig(cfg.URL), nil
	case "durable_pubsub":
		return wmamqp.NewDurablePubSubConfig(cfg.URL, wmamqp.GenerateQueueNameTopicNameWithSuffix(group)), nil
	case "nondurable_pubsub":
		return wmamqp.NewNonDurablePubSubConfig(cfg.URL, wmamqp.GenerateQueueNameTopicNameWithSuffix(group)), nil
	default:
		return wmamqp.Config{}, fmt.Errorf("unsupported amqp mode: %s", cfg.Mode)
	}
}

func buildKafkaSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	return wmkafka.NewSubscriber(wmkafka.SubscriberConfig{
		Brokers:       cfg.Kafka.Brokers,
		ConsumerGroup: cfg.group(),
	}, nil, wmkafka.DefaultMarshaler{}, logger)
}

// buildSQLSubscriber reads the tables the sql notify driver writes. The
// database/sql driver must be registered by the caller.
func buildSQLSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
		return nil, errors.New("sql driver and dsn are required")
	}
	schema, offsets, err := sqlAdapters(cfg.SQL.Dialect)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
	if err != nil {
		return nil, err
	}
	sub, err := wmsql.NewSubscriber(db, wmsql.SubscriberConfig{
		ConsumerGroup:    cfg.group(),
		SchemaAdapter:    schema,
		OffsetsAdapter:   offsets,
		InitializeSchema: cfg.SQL.InitializeSchema,
	}, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &closingSubscriber{Subscriber: sub, closeFn: db.Close}, nil
}

func sqlAdapters(dialect string) (wmsql.SchemaAdapter, wmsql.OffsetsAdapter, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return wmsql.DefaultPostgreSQLSchema{}, wmsql.DefaultPostgreSQLOffsetsAdapter{}, nil
	case "mysql":
		return wmsql.DefaultMySQLSchema{}, wmsql.DefaultMySQLOffsetsAdapter{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
}

func connectWithRetry(cfg SubscriberConfig, build func() (message.Subscriber, error)) (message.Subscriber, error) {
	attempts := max(cfg.ConnectAttempts, 1)
	delay := time.Duration(cfg.ConnectDelayMS) * time.Millisecond

	var err error
	for i := 0; i < attempts; i++ {
		var sub message.Subscriber
		if sub, err = build(); err == nil {
			return sub, nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return nil, err
}

type closingSubscriber struct {
	message.Subscriber
	closeFn func() error
}

func (c *closingSubscriber) Close() error {
	return errors.Join(c.Subscriber.Close(), c.closeFn())
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
