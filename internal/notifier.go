package internal

import (
	"context"
	"log"

	"gitfeed/pkg/events"
)

// Notifier routes stored events through the rule engine to the publisher.
// A nil *Notifier is valid and does nothing.
type Notifier struct {
	rules     *RuleEngine
	publisher Publisher
	logger    *log.Logger
}

func NewNotifier(rules *RuleEngine, publisher Publisher, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = NewLogger("notify")
	}
	return &Notifier{rules: rules, publisher: publisher, logger: logger}
}

// Notify publishes a stored record to every matching topic. Failures are
// logged and counted only.
func (n *Notifier) Notify(ctx context.Context, eventName, requestID string, record events.Event, rawPayload []byte) {
	if n == nil || n.rules == nil || n.publisher == nil {
		return
	}
	logger := WithRequestID(n.logger, requestID)
	msg := Notification{Event: eventName, RequestID: requestID, Record: record}
	for _, match := range n.rules.Evaluate(record, eventName, rawPayload) {
		if err := n.publisher.PublishForDrivers(ctx, match.Topic, msg, match.Drivers); err != nil {
			logger.Printf("publish failed topic=%s err=%v", match.Topic, err)
			continue
		}
		logger.Printf("published topic=%s action=%s", match.Topic, record.Action)
	}
}

func (n *Notifier) Close() error {
	if n == nil || n.publisher == nil {
		return nil
	}
	return n.publisher.Close()
}

// NewNotifierFromConfig builds the notifier described by cfg. It returns nil
// when no notify drivers are configured.
func NewNotifierFromConfig(cfg Config, logger *log.Logger) (*Notifier, error) {
	if len(cfg.Notify.Drivers) == 0 {
		return nil, nil
	}
	rules, err := NewRuleEngine(cfg.Rules, cfg.Notify.Topic, logger)
	if err != nil {
		return nil, err
	}
	publisher, err := NewPublisher(cfg.Notify)
	if err != nil {
		return nil, err
	}
	return NewNotifier(rules, publisher, logger), nil
}
