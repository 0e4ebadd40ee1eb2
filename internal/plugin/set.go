package plugin

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/plugin/lua"
)

// Set holds the Lua plugins loaded for one dispatcher.
type Set struct {
	logger  *zap.Logger
	timeout time.Duration
	plugins []*lua.Plugin
}

// SetOption configures a Set.
type SetOption func(*Set)

// WithLogger sets the logger scripts print to.
func WithLogger(logger *zap.Logger) SetOption {
	return func(s *Set) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExecutionTimeout bounds each script run and handler call. Zero keeps
// lua.DefaultExecutionTimeout.
func WithExecutionTimeout(d time.Duration) SetOption {
	return func(s *Set) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSet creates an empty set.
func NewSet(opts ...SetOption) *Set {
	s := &Set{
		logger:  zap.NewNop(),
		timeout: lua.DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("plugin")
	return s
}

// Load discovers and loads the scripts under paths, appending them to the
// set in order. Nothing is added when any script fails.
func (s *Set) Load(paths ...string) error {
	scripts, err := Discover(paths...)
	if err != nil {
		return err
	}

	loaded := make([]*lua.Plugin, 0, len(scripts))
	for _, path := range scripts {
		p, err := lua.LoadPlugin(path,
			lua.WithLogger(s.logger.With(zap.String("script", path))),
			lua.WithExecutionTimeout(s.timeout),
		)
		if err != nil {
			for _, l := range loaded {
				_ = l.Close()
			}
			return fmt.Errorf("plugin: %w", err)
		}
		s.logger.Debug("loaded script", zap.String("script", path), zap.Strings("tags", p.Tags()))
		loaded = append(loaded, p)
	}

	s.plugins = append(s.plugins, loaded...)
	return nil
}

// Plugins returns the loaded plugins in load order.
func (s *Set) Plugins() []*lua.Plugin {
	return append([]*lua.Plugin(nil), s.plugins...)
}

// Len returns the number of loaded plugins.
func (s *Set) Len() int {
	return len(s.plugins)
}

// Tables returns builtins followed by one table per loaded script, the
// order the dispatcher merges them in.
func (s *Set) Tables(builtins ...dispatcher.Table) []dispatcher.Table {
	tables := make([]dispatcher.Table, 0, len(builtins)+len(s.plugins))
	tables = append(tables, builtins...)
	for _, p := range s.plugins {
		tables = append(tables, p.Table())
	}
	return tables
}

// Close releases every script's Lua state.
func (s *Set) Close() error {
	var errs []error
	for _, p := range s.plugins {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.plugins = nil
	return errors.Join(errs...)
}
