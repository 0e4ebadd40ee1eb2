package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub shares one backend between sessions and fans changes out to them.
type Hub struct {
	backend Backend
	logger  *zap.Logger

	mu     sync.RWMutex
	subs   map[uint64]subscriber
	nextID uint64
}

type subscriber struct {
	origin string
	fn     func(Change)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates a hub over backend.
func NewHub(backend Backend, opts ...HubOption) *Hub {
	h := &Hub{
		backend: backend,
		logger:  zap.NewNop(),
		subs:    make(map[uint64]subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("storage")
	return h
}

// Watch starts reporting external changes when the backend supports it.
// It returns false for backends that cannot watch.
func (h *Hub) Watch() (bool, error) {
	w, ok := h.backend.(Watcher)
	if !ok {
		return false, nil
	}
	return true, w.Watch(h.Publish)
}

// Session returns a Store bound to a new origin.
func (h *Hub) Session() *Session {
	return &Session{hub: h, origin: uuid.NewString()}
}

// Publish delivers c to every subscriber whose session did not make it.
// Subscribers run synchronously on the publishing goroutine.
func (h *Hub) Publish(c Change) {
	h.mu.RLock()
	targets := make([]func(Change), 0, len(h.subs))
	for _, s := range h.subs {
		if s.origin != c.Origin {
			targets = append(targets, s.fn)
		}
	}
	h.mu.RUnlock()

	h.logger.Debug("change",
		zap.String("key", c.Key),
		zap.Bool("removed", c.Value == nil),
		zap.String("origin", c.Origin),
		zap.Int("subscribers", len(targets)),
	)
	for _, fn := range targets {
		fn(c)
	}
}

func (h *Hub) subscribe(origin string, fn func(Change)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscriber{origin: origin, fn: fn}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Close closes the backend.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.subs = make(map[uint64]subscriber)
	h.mu.Unlock()
	return h.backend.Close()
}

// Session is a Store bound to one origin.
type Session struct {
	hub    *Hub
	origin string
}

// Origin returns the session's origin id.
func (s *Session) Origin() string {
	return s.origin
}

// Get implements Store.
func (s *Session) Get(ctx context.Context, key string) (string, bool, error) {
	return s.hub.backend.Get(ctx, key)
}

// Set implements Store. Other sessions are notified only when the value
// actually changes.
func (s *Session) Set(ctx context.Context, key, value string) error {
	old, existed, err := s.hub.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := s.hub.backend.Set(ctx, key, value); err != nil {
		return err
	}
	if !existed || old != value {
		v := value
		s.hub.Publish(Change{Key: key, Value: &v, Origin: s.origin})
	}
	return nil
}

// Remove implements Store. Other sessions are notified only when the key
// existed.
func (s *Session) Remove(ctx context.Context, key string) error {
	_, existed, err := s.hub.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := s.hub.backend.Remove(ctx, key); err != nil {
		return err
	}
	if existed {
		s.hub.Publish(Change{Key: key, Origin: s.origin})
	}
	return nil
}

// Subscribe implements Store.
func (s *Session) Subscribe(fn func(Change)) func() {
	return s.hub.subscribe(s.origin, fn)
}
