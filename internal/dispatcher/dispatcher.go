package dispatcher

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/message"
	"github.com/dshills/portsdriver/internal/port"
)

// Dispatcher routes messages from the outbound stream to plugin handlers.
type Dispatcher struct {
	mu sync.RWMutex

	state    State
	table    Table
	outbound <-chan message.Message
	inbound  port.Sender

	// claimed is set by the first Install call, before hooks run.
	claimed atomic.Bool
	running atomic.Bool

	fallback Fallback
	config   Config
	metrics  *Metrics
	logger   *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for diagnostics and the default fallback.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithFallback replaces the handler for unmatched messages.
func WithFallback(fb Fallback) Option {
	return func(d *Dispatcher) {
		d.fallback = fb
	}
}

// New creates a new dispatcher with the given configuration.
func New(config Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("dispatcher")

	if d.fallback == nil {
		d.fallback = LogFallback(d.logger)
	}
	if config.EnableMetrics {
		d.metrics = NewMetrics()
	}
	return d
}

// NewWithDefaults creates a new dispatcher with default configuration.
func NewWithDefaults() *Dispatcher {
	return New(DefaultConfig())
}

// Install merges plugins into the dispatch table, runs their install hooks
// and moves the dispatcher to Installed. outbound may be nil when messages
// are fed through Dispatch directly.
//
// Install succeeds at most once. Panics raised by hooks propagate to the
// caller and leave the dispatcher unusable.
func (d *Dispatcher) Install(outbound <-chan message.Message, inbound port.Sender, plugins ...Table) error {
	if inbound == nil {
		return ErrNilInbound
	}
	for _, p := range plugins {
		if tag, ok := p.validate(); !ok {
			return fmt.Errorf("%w for tag %q", ErrNilHandler, tag)
		}
	}
	if !d.claimed.CompareAndSwap(false, true) {
		return ErrAlreadyInstalled
	}

	table := Merge(plugins...)

	for _, hook := range InstallHooks(plugins...) {
		d.logger.Debug("running install hook", zap.String("tag", hook.Tag), zap.Int("plugin", hook.Plugin))
		hook.Handler(inbound, nil)
	}

	d.mu.Lock()
	d.table = table
	d.outbound = outbound
	d.inbound = inbound
	d.state = Installed
	d.mu.Unlock()

	d.logger.Debug("installed", zap.Int("plugins", len(plugins)), zap.Int("tags", len(table)))
	return nil
}

// State returns the lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Tags returns the routable tags in lexical order. Install hooks are not
// routable and are omitted. Returns nil before Install.
func (d *Dispatcher) Tags() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.table == nil {
		return nil
	}
	var tags []string
	for _, tag := range d.table.Tags() {
		if !IsInstallTag(tag) {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Dispatch routes one message. The matching handler, or the fallback when
// none matches, has returned by the time Dispatch returns.
func (d *Dispatcher) Dispatch(msg message.Message) error {
	d.mu.RLock()
	state := d.state
	h := d.table[msg.Tag]
	inbound := d.inbound
	d.mu.RUnlock()

	if state != Installed {
		return ErrNotInstalled
	}

	if h == nil || IsInstallTag(msg.Tag) {
		if d.metrics != nil {
			d.metrics.RecordUnmatched(msg.Tag)
		}
		d.fallback(inbound, msg)
		return nil
	}

	startTime := time.Now()
	if d.config.RecoverFromPanic {
		d.executeWithRecovery(h, inbound, msg)
	} else {
		h(inbound, msg.Payload)
	}

	elapsed := time.Since(startTime)
	if d.metrics != nil {
		d.metrics.RecordDispatch(msg.Tag, elapsed)
	}
	if d.config.SlowThreshold > 0 && elapsed > d.config.SlowThreshold {
		d.logger.Warn("slow handler",
			zap.String("tag", msg.Tag),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", d.config.SlowThreshold),
		)
	}
	return nil
}

// executeWithRecovery executes a handler with panic recovery.
func (d *Dispatcher) executeWithRecovery(h Handler, inbound port.Sender, msg message.Message) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)

			d.logger.Error("handler panic",
				zap.String("tag", msg.Tag),
				zap.Any("panic", r),
				zap.ByteString("stack", stack[:n]),
			)
			if d.metrics != nil {
				d.metrics.RecordPanic(msg.Tag)
			}
		}
	}()

	h(inbound, msg.Payload)
}

// Run dispatches messages from the outbound stream one at a time until the
// stream is closed (returning nil) or ctx is cancelled (returning ctx.Err()).
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.RLock()
	state := d.state
	outbound := d.outbound
	d.mu.RUnlock()

	if state != Installed {
		return ErrNotInstalled
	}
	if outbound == nil {
		return ErrNoOutbound
	}
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-outbound:
			if !ok {
				return nil
			}
			if err := d.Dispatch(msg); err != nil {
				return err
			}
		}
	}
}

// Metrics returns the metrics collector (may be nil if disabled).
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Config returns the dispatcher configuration.
func (d *Dispatcher) Config() Config {
	return d.config
}
