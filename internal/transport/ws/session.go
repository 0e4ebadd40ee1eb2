package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/builtin"
	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/document"
	"github.com/dshills/portsdriver/internal/filesource"
	"github.com/dshills/portsdriver/internal/plugin"
	"github.com/dshills/portsdriver/internal/port"
)

// session is one connected application instance.
type session struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	pair       *port.Pair
	doc        *document.Document
	files      *filesource.Registry
	builtins   *builtin.Builtins
	plugins    *plugin.Set
	dispatcher *dispatcher.Dispatcher
	metrics    bool
	readLimit  int64

	ctx    context.Context
	cancel context.CancelFunc

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	workers   sync.WaitGroup
}

// newSession builds the per-connection driver. Scripts are loaded here so a
// broken script fails the upgrade before any frame is exchanged.
func newSession(srv *Server, conn *websocket.Conn) (*session, error) {
	cfg := srv.cfg
	id := uuid.NewString()
	logger := srv.logger.With(zap.String("session", id))

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:        id,
		conn:      conn,
		logger:    logger,
		pair:      port.NewPair(cfg.Server.SendBuffer),
		doc:       document.New(),
		files:     filesource.NewRegistry(cfg.Files.Root),
		metrics:   cfg.Dispatcher.Metrics,
		readLimit: cfg.Server.ReadLimit,
		ctx:       ctx,
		cancel:    cancel,
		send:      make(chan []byte, cfg.Server.SendBuffer),
		done:      make(chan struct{}),
	}
	s.plugins = plugin.NewSet(
		plugin.WithLogger(logger),
		plugin.WithExecutionTimeout(time.Duration(cfg.Plugins.TimeoutMS)*time.Millisecond),
	)
	if err := s.plugins.Load(cfg.Plugins.Scripts...); err != nil {
		cancel()
		return nil, err
	}

	s.builtins = builtin.New(builtin.Deps{
		Logger:      logger,
		Document:    s.doc,
		Files:       s.files,
		Storage:     srv.storage.Session(),
		Context:     ctx,
		MaxFileSize: cfg.Files.MaxSize,
	})

	dcfg := dispatcher.DefaultConfig().
		WithPanicRecovery(cfg.Dispatcher.RecoverFromPanic).
		WithSlowThreshold(time.Duration(cfg.Dispatcher.SlowHandlerMS) * time.Millisecond)
	if cfg.Dispatcher.Metrics {
		dcfg = dcfg.WithMetrics()
	}
	s.dispatcher = dispatcher.New(dcfg, dispatcher.WithLogger(logger))

	return s, nil
}

// run serves the connection until it closes.
func (s *session) run() {
	s.conn.SetReadLimit(s.readLimit)

	s.workers.Add(2)
	go s.writePump()
	go s.forwardInbound()

	// Install hooks may reply, so the inbound forwarder starts first.
	s.enqueue(Frame{Kind: KindSession, ID: s.id})

	// Current document state first, then live changes.
	for _, op := range s.doc.Ops() {
		s.enqueue(domFrame(op))
	}
	s.doc.OnChange(func(op document.Op) {
		s.enqueue(domFrame(op))
	})
	if err := s.install(); err != nil {
		s.logger.Error("install failed", zap.Error(err))
		s.closeWith(websocket.CloseInternalServerErr, "install failed")
		s.teardown(nil)
		return
	}
	s.logger.Info("session opened",
		zap.Int("plugins", s.plugins.Len()),
		zap.Strings("tags", s.dispatcher.Tags()))

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		s.dispatch()
	}()

	s.readPump()
	s.teardown(dispatchDone)
}

// install merges the built-in and script tables and runs install hooks.
// A hook panic is reported as an error.
func (s *session) install() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("install hook panic: %v", r)
		}
	}()
	return s.dispatcher.Install(s.pair.Outbound(), s.pair.Sender(), s.plugins.Tables(s.builtins.Table())...)
}

// dispatch runs the dispatcher loop. A handler panic that the dispatcher
// does not recover ends this session only.
func (s *session) dispatch() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic, closing session",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			s.closeWith(websocket.CloseInternalServerErr, "handler failed")
		}
	}()

	if err := s.dispatcher.Run(s.ctx); err != nil && s.ctx.Err() == nil {
		s.logger.Error("dispatch loop stopped", zap.Error(err))
	}
}

// readPump decodes client frames until the connection fails.
func (s *session) readPump() {
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("unexpected close", zap.Error(err))
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.enqueue(errorFrame(fmt.Errorf("malformed frame: %w", err)))
			continue
		}
		s.handleFrame(f)
	}
}

func (s *session) handleFrame(f Frame) {
	switch f.Kind {
	case KindMessage:
		if f.Message == nil || f.Message.Tag == "" {
			s.enqueue(errorFrame(fmt.Errorf("message frame without tag")))
			return
		}
		s.pair.Emit(*f.Message)
	case KindSelect:
		if f.ID == "" {
			s.enqueue(errorFrame(fmt.Errorf("select frame without id")))
			return
		}
		if err := s.files.SelectRefs(f.ID, f.Files...); err != nil {
			s.enqueue(errorFrame(fmt.Errorf("select %s: %w", f.ID, err)))
		}
	default:
		s.enqueue(errorFrame(fmt.Errorf("unknown frame kind %q", f.Kind)))
	}
}

// forwardInbound turns messages for the application into frames.
func (s *session) forwardInbound() {
	defer s.workers.Done()
	for {
		select {
		case msg := <-s.pair.Inbound():
			s.enqueue(messageFrame(msg))
		case <-s.done:
			return
		}
	}
}

// enqueue hands a frame to the write pump. Frames queued after the session
// ends are dropped.
func (s *session) enqueue(f Frame) {
	data, err := encodeFrame(f)
	if err != nil {
		s.logger.Error("encode frame", zap.String("kind", f.Kind), zap.Error(err))
		return
	}
	select {
	case s.send <- data:
	case <-s.done:
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
func (s *session) writePump() {
	defer s.workers.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write failed", zap.Error(err))
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// closeWith sends a close frame, which ends the read pump once the peer
// answers or the connection drops.
func (s *session) closeWith(code int, reason string) {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	_ = s.conn.Close()
}

// shutdown ends the session from the server side.
func (s *session) shutdown() {
	s.closeWith(websocket.CloseGoingAway, "server shutting down")
}

// teardown releases the session: storage listeners stop, frames stop
// flowing, the dispatch loop ends, pending file reads finish, then the
// scripts are closed. dispatchDone is nil when the loop never started.
func (s *session) teardown(dispatchDone <-chan struct{}) {
	s.closeOnce.Do(func() {
		s.builtins.Close()
		s.cancel()
		s.pair.Close()
		close(s.done)

		if dispatchDone != nil {
			<-dispatchDone
		}
		s.builtins.Wait()
		if err := s.plugins.Close(); err != nil {
			s.logger.Warn("closing plugins", zap.Error(err))
		}

		if s.metrics {
			if m := s.dispatcher.Metrics(); m != nil {
				snap := m.Snapshot()
				s.logger.Info("session metrics",
					zap.Uint64("dispatches", snap.TotalDispatches),
					zap.Uint64("unmatched", snap.TotalUnmatched),
					zap.Uint64("panics", snap.TotalPanics),
					zap.Duration("average", snap.AverageDuration),
					zap.Objects("top", m.TopTags(topTags)),
				)
			}
		}

		s.workers.Wait()
		_ = s.conn.Close()
		s.logger.Info("session closed")
	})
}
