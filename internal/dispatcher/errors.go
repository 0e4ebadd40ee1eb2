package dispatcher

import "errors"

// Dispatcher errors.
var (
	// ErrAlreadyInstalled indicates Install was called on an installed dispatcher.
	ErrAlreadyInstalled = errors.New("dispatcher: already installed")

	// ErrNotInstalled indicates a dispatch was attempted before Install.
	ErrNotInstalled = errors.New("dispatcher: not installed")

	// ErrNilInbound indicates Install was given no inbound sender.
	ErrNilInbound = errors.New("dispatcher: inbound sender is nil")

	// ErrNilHandler indicates a plugin table maps a tag to a nil handler.
	ErrNilHandler = errors.New("dispatcher: nil handler")

	// ErrNoOutbound indicates Run was called on a dispatcher installed without an outbound stream.
	ErrNoOutbound = errors.New("dispatcher: no outbound stream")

	// ErrAlreadyRunning indicates Run was called while another Run is active.
	ErrAlreadyRunning = errors.New("dispatcher: already running")
)
