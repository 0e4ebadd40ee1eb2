// Package localstore defines the key/value store contract the LocalStorage*
// handlers work against. It has no dependencies so that every host,
// including js/wasm, can implement it; backends live in package storage.
package localstore

import "context"

// Change describes a modification of one key.
type Change struct {
	Key string

	// Value is the new value, nil when the key was removed.
	Value *string

	// Origin is the session that made the change, External for changes
	// made outside the process.
	Origin string
}

// External is the origin of changes made outside the hub.
const External = "external"

// Store is one session's view of local storage.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error

	// Subscribe calls fn for changes made by other sessions or externally.
	// fn must not block. The returned function cancels the subscription.
	Subscribe(fn func(Change)) (cancel func())
}
