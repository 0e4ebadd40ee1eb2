package ws

import (
	"encoding/json"

	"github.com/dshills/portsdriver/internal/document"
	"github.com/dshills/portsdriver/internal/message"
)

// Frame kinds.
const (
	KindMessage = "message"
	KindSelect  = "select"
	KindSession = "session"
	KindDOM     = "dom"
	KindError   = "error"
)

// Frame is one WebSocket text message in either direction.
type Frame struct {
	Kind string `json:"kind"`

	// Message carries an application message (KindMessage).
	Message *message.Message `json:"message,omitempty"`

	// ID is the element id (KindSelect) or the session id (KindSession).
	ID string `json:"id,omitempty"`

	// Files are file references under the files root (KindSelect).
	Files []string `json:"files,omitempty"`

	// Op is a document mutation (KindDOM).
	Op *document.Op `json:"op,omitempty"`

	// Error describes a rejected frame (KindError).
	Error string `json:"error,omitempty"`
}

func messageFrame(msg message.Message) Frame {
	return Frame{Kind: KindMessage, Message: &msg}
}

func domFrame(op document.Op) Frame {
	return Frame{Kind: KindDOM, Op: &op}
}

func errorFrame(err error) Frame {
	return Frame{Kind: KindError, Error: err.Error()}
}

func encodeFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}
