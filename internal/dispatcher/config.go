package dispatcher

import "time"

// Config holds dispatcher configuration options.
type Config struct {
	// RecoverFromPanic wraps handler execution in panic recovery. When false
	// a panicking handler propagates out of Dispatch and Run.
	RecoverFromPanic bool

	// EnableMetrics enables dispatch timing and statistics collection.
	EnableMetrics bool

	// SlowThreshold logs handlers that run longer than this. Zero disables
	// the check.
	SlowThreshold time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecoverFromPanic: false,
		EnableMetrics:    false,
	}
}

// WithMetrics returns a copy of the config with metrics enabled.
func (c Config) WithMetrics() Config {
	c.EnableMetrics = true
	return c
}

// WithPanicRecovery returns a copy of the config with panic recovery set.
func (c Config) WithPanicRecovery(recover bool) Config {
	c.RecoverFromPanic = recover
	return c
}

// WithSlowThreshold returns a copy of the config that warns about handlers
// slower than d.
func (c Config) WithSlowThreshold(d time.Duration) Config {
	c.SlowThreshold = d
	return c
}
