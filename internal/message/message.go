package message

import (
	"encoding/json"
	"fmt"
)

// Message is a tagged envelope travelling in either direction.
type Message struct {
	// Tag selects the handler.
	Tag string `json:"tag"`

	// Payload is handler-specific JSON. A nil payload encodes as null.
	Payload json.RawMessage `json:"payload"`
}

// New creates a message whose payload is the JSON encoding of v.
func New(tag string, v any) (Message, error) {
	if v == nil {
		return Message{Tag: tag}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("encode payload for %s: %w", tag, err)
	}
	return Message{Tag: tag, Payload: data}, nil
}

// Raw creates a message from an already encoded payload.
func Raw(tag string, payload []byte) Message {
	return Message{Tag: tag, Payload: json.RawMessage(payload)}
}

// HasPayload reports whether the message carries a non-null payload.
func (m Message) HasPayload() bool {
	return len(m.Payload) > 0 && string(m.Payload) != "null"
}

// String returns a short description for diagnostics.
func (m Message) String() string {
	if !m.HasPayload() {
		return m.Tag
	}
	const max = 120
	p := string(m.Payload)
	if len(p) > max {
		p = p[:max] + "..."
	}
	return m.Tag + " " + p
}
