package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/config"
	"github.com/dshills/portsdriver/internal/storage"
)

// Connection timing.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// topTags is how many tags the session metrics log reports.
	topTags = 5
)

// ErrServerClosed is returned by Shutdown when called twice.
var ErrServerClosed = errors.New("ws: server closed")

// Deps are the collaborators shared by every session.
type Deps struct {
	Logger  *zap.Logger
	Storage *storage.Hub
}

// Server upgrades HTTP requests to driver sessions.
type Server struct {
	cfg      config.Config
	storage  *storage.Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a server. A nil storage hub gets an in-memory one.
func NewServer(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := deps.Storage
	if hub == nil {
		hub = storage.NewHub(storage.NewMemory(), storage.WithLogger(logger))
	}

	s := &Server{
		cfg:      cfg,
		storage:  hub,
		logger:   logger.Named("ws"),
		sessions: make(map[*session]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin(cfg.Server.AllowedOrigins),
	}
	return s
}

// checkOrigin returns the upgrader's origin check. With no allowed origins
// gorilla's same-host check applies.
func (s *Server) checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if isOriginAllowed(origin, allowed) {
			return true
		}
		s.logger.Warn("rejected origin", zap.String("origin", origin), zap.String("remote", r.RemoteAddr))
		return false
	}
}

// isOriginAllowed matches origin against exact entries, "*" and
// "*.example.com" style subdomain wildcards.
func isOriginAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		switch {
		case a == "*":
			return true
		case origin == a:
			return true
		case strings.HasPrefix(a, "*."):
			host := origin
			if i := strings.Index(host, "://"); i >= 0 {
				host = host[i+3:]
			}
			if strings.HasSuffix(host, a[1:]) {
				return true
			}
		}
	}
	return false
}

// ServeHTTP upgrades the request and runs a session until the connection
// closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.wg.Add(1)
	}
	s.mu.Unlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	sess, err := newSession(s, conn)
	if err != nil {
		s.logger.Error("session setup failed", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session setup failed"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	if !s.register(sess) {
		// Shutdown began after the upgrade.
		sess.shutdown()
	}
	defer s.unregister(sess)

	sess.run()
}

// register tracks sess and reports whether the server is still open.
func (s *Server) register(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess] = struct{}{}
	return !s.closed
}

func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown stops accepting sessions, closes the open ones and waits for
// them to finish or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.closed = true
	open := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.shutdown()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
