package storage

import (
	"context"
	"fmt"

	"github.com/dshills/portsdriver/internal/localstore"
)

// Backend persists string values by key.
type Backend interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// Watcher is implemented by backends that can report changes made outside
// this process.
type Watcher interface {
	Watch(fn func(Change)) error
}

// Change describes a modification of one key.
type Change = localstore.Change

// External is the origin of changes made outside the hub.
const External = localstore.External

// Store is one session's view of a hub.
type Store = localstore.Store

// Open opens a backend by name: "memory", "bolt" or "dir".
func Open(kind, path string) (Backend, error) {
	switch kind {
	case "", "memory":
		return NewMemory(), nil
	case "bolt":
		return OpenBolt(path)
	case "dir":
		return OpenDir(path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
}
