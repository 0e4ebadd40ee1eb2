//go:build js && wasm

package browser

import (
	"context"
	"syscall/js"

	"github.com/dshills/portsdriver/internal/localstore"
)

// LocalStorage is a localstore.Store over window.localStorage. Browsers fire
// the storage event only in other documents, which matches the Store
// contract of reporting changes made elsewhere.
type LocalStorage struct {
	ls     js.Value
	window js.Value
}

// NewLocalStorage wraps window.localStorage.
func NewLocalStorage() *LocalStorage {
	window := js.Global()
	return &LocalStorage{ls: window.Get("localStorage"), window: window}
}

// Get implements localstore.Store.
func (s *LocalStorage) Get(_ context.Context, key string) (value string, ok bool, err error) {
	err = catch(func() {
		v := s.ls.Call("getItem", key)
		if v.IsNull() {
			return
		}
		value, ok = v.String(), true
	})
	return value, ok, err
}

// Set implements localstore.Store. Quota errors are returned.
func (s *LocalStorage) Set(_ context.Context, key, value string) error {
	return catch(func() {
		s.ls.Call("setItem", key, value)
	})
}

// Remove implements localstore.Store.
func (s *LocalStorage) Remove(_ context.Context, key string) error {
	return catch(func() {
		s.ls.Call("removeItem", key)
	})
}

// Subscribe implements localstore.Store. Clearing the whole storage reports no
// per-key change and is ignored.
func (s *LocalStorage) Subscribe(fn func(localstore.Change)) func() {
	listener := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		event := args[0]
		if !event.Get("storageArea").Equal(s.ls) {
			return nil
		}
		key := event.Get("key")
		if key.IsNull() {
			return nil
		}
		c := localstore.Change{Key: key.String(), Origin: localstore.External}
		if v := event.Get("newValue"); !v.IsNull() {
			value := v.String()
			c.Value = &value
		}
		fn(c)
		return nil
	})
	s.window.Call("addEventListener", "storage", listener)

	released := false
	return func() {
		if released {
			return
		}
		released = true
		s.window.Call("removeEventListener", "storage", listener)
		listener.Release()
	}
}
