package storage

import "errors"

// Storage errors.
var (
	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("storage: closed")

	// ErrEmptyPath indicates a backend was opened without a path.
	ErrEmptyPath = errors.New("storage: path is required")

	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = errors.New("storage: unknown backend")
)
