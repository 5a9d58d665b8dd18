package worker

import (
	"encoding/json"

	"gitfeed/pkg/events"
)

// Delivery is one stored-event notification received from a broker.
type Delivery struct {
	// Topic is the topic the message was received on.
	Topic string `json:"topic"`
	// Event is the GitHub event name the record was normalized from.
	Event     string `json:"event"`
	RequestID string `json:"request_id,omitempty"`
	// Record is the stored event.
	Record events.Event `json:"record"`
	// Metadata contains message-broker-specific metadata.
	Metadata map[string]string `json:"metadata"`
	// Payload is the raw message body.
	Payload json.RawMessage `json:"payload"`
}
