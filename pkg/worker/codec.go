package worker

import (
	"encoding/json"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	"gitfeed/pkg/events"
)

// Codec decodes broker messages into deliveries.
type Codec interface {
	Decode(topic string, msg *message.Message) (*Delivery, error)
}

// DefaultCodec decodes the JSON notification published by gitfeed.
type DefaultCodec struct{}

type envelope struct {
	Event     string       `json:"event"`
	RequestID string       `json:"request_id"`
	Record    events.Event `json:"record"`
}

// Decode unmarshals a Watermill message into a Delivery. Missing envelope
// fields fall back to the message metadata.
func (DefaultCodec) Decode(topic string, msg *message.Message) (*Delivery, error) {
	var env envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return nil, err
	}
	if !env.Record.Action.Valid() {
		return nil, errors.New("notification has no valid record")
	}

	metadata := make(map[string]string, len(msg.Metadata))
	for key, value := range msg.Metadata {
		metadata[key] = value
	}

	eventName := env.Event
	if eventName == "" {
		eventName = msg.Metadata.Get("event")
	}
	requestID := env.RequestID
	if requestID == "" {
		requestID = msg.Metadata.Get("request_id")
	}

	return &Delivery{
		Topic:     topic,
		Event:     eventName,
		RequestID: requestID,
		Record:    env.Record,
		Metadata:  metadata,
		Payload:   json.RawMessage(msg.Payload),
	}, nil
}
