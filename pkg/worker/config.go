package worker

// DefaultGroup names the consumer group used when SubscriberConfig.Group is empty.
const DefaultGroup = "gitfeed-worker"

// SubscriberConfig selects the brokers a worker consumes gitfeed
// notifications from. Field names follow the notify section of the server
// config so one can be copied into the other.
type SubscriberConfig struct {
	Drivers []string

	// Group identifies this consumer: the Kafka and SQL consumer group and
	// the suffix of AMQP pub/sub queues. Workers sharing a group split the
	// stream; workers with different groups each see every notification.
	Group string

	GoChannel GoChannelConfig
	Kafka     KafkaConfig
	NATS      NATSConfig
	AMQP      AMQPConfig
	SQL       SQLConfig

	// ConnectAttempts and ConnectDelayMS bound the retries when a broker is unreachable at startup.
	ConnectAttempts int
	ConnectDelayMS  int
}

func (c SubscriberConfig) group() string {
	if c.Group == "" {
		return DefaultGroup
	}
	return c.Group
}

type GoChannelConfig struct {
	OutputChannelBuffer int64
	Persistent          bool
}

type KafkaConfig struct {
	Brokers []string
}

// NATSConfig configures a core NATS subscription; subjects are the topic names.
type NATSConfig struct {
	URL  string
	Name string
}

type AMQPConfig struct {
	URL  string
	Mode string
}

type SQLConfig struct {
	Driver           string
	DSN              string
	Dialect          string
	InitializeSchema bool
}
