package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
)

// natsSubscriber delivers core NATS messages on the subject named after the
// topic. Core NATS has no acknowledgements, so Ack and Nack are no-ops.
type natsSubscriber struct {
	nc *nats.Conn
}

func buildNATSSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if cfg.NATS.URL == "" {
		return nil, errors.New("nats url is required")
	}
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name(cfg.NATS.Name),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(500*time.Millisecond),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Error("nats disconnected", err, watermill.LogFields{"url": cfg.NATS.URL})
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return &natsSubscriber{nc: nc}, nil
}

// Subscribe never closes the returned channel; it stops delivering once ctx
// is done.
func (s *natsSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	out := make(chan *message.Message, 64)
	sub, err := s.nc.Subscribe(topic, func(m *nats.Msg) {
		msg := message.NewMessage(watermill.NewUUID(), m.Data)
		for key := range m.Header {
			msg.Metadata.Set(key, m.Header.Get(key))
		}
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return out, nil
}

func (s *natsSubscriber) Close() error {
	if s.nc == nil {
		return nil
	}
	err := s.nc.Drain()
	s.nc.Close()
	return err
}
