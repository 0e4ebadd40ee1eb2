package config

import (
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable the configuration reads.
const EnvPrefix = "PORTSDRIVER_"

// Config is the complete driver configuration.
type Config struct {
	Server     ServerConfig     `toml:"server" yaml:"server" envPrefix:"SERVER_"`
	Storage    StorageConfig    `toml:"storage" yaml:"storage" envPrefix:"STORAGE_"`
	Files      FilesConfig      `toml:"files" yaml:"files" envPrefix:"FILES_"`
	Plugins    PluginsConfig    `toml:"plugins" yaml:"plugins" envPrefix:"PLUGINS_"`
	Dispatcher DispatcherConfig `toml:"dispatcher" yaml:"dispatcher" envPrefix:"DISPATCHER_"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging" envPrefix:"LOGGING_"`
}

// ServerConfig configures the WebSocket host.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `toml:"addr" yaml:"addr" env:"ADDR"`

	// Path is the URL path that upgrades to WebSocket.
	Path string `toml:"path" yaml:"path" env:"PATH"`

	// AllowedOrigins lists the origins allowed to connect. Empty allows
	// same-host requests only.
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`

	// ReadLimit is the largest frame accepted, in bytes.
	ReadLimit int64 `toml:"read_limit" yaml:"read_limit" env:"READ_LIMIT"`

	// SendBuffer is the number of frames queued per connection.
	SendBuffer int `toml:"send_buffer" yaml:"send_buffer" env:"SEND_BUFFER"`
}

// StorageConfig selects the local storage backend.
type StorageConfig struct {
	// Backend is "memory", "bolt" or "dir".
	Backend string `toml:"backend" yaml:"backend" env:"BACKEND"`

	// Path is the bolt database file or the storage directory.
	Path string `toml:"path" yaml:"path" env:"PATH"`

	// Watch reports changes made to a "dir" backend by other processes.
	Watch bool `toml:"watch" yaml:"watch" env:"WATCH"`
}

// FilesConfig configures file reads.
type FilesConfig struct {
	// Root is the directory file references resolve under. Empty disables
	// file references.
	Root string `toml:"root" yaml:"root" env:"ROOT"`

	// MaxSize bounds a single file read in bytes. Zero means no limit.
	MaxSize int64 `toml:"max_size" yaml:"max_size" env:"MAX_SIZE"`
}

// PluginsConfig lists Lua plugin scripts.
type PluginsConfig struct {
	// Scripts are files or directories, loaded in order.
	Scripts []string `toml:"scripts" yaml:"scripts" env:"SCRIPTS"`

	// TimeoutMS bounds one handler call in milliseconds. Zero keeps the
	// runtime default.
	TimeoutMS int `toml:"timeout_ms" yaml:"timeout_ms" env:"TIMEOUT_MS"`
}

// DispatcherConfig configures message dispatch.
type DispatcherConfig struct {
	// RecoverFromPanic logs handler panics instead of propagating them.
	RecoverFromPanic bool `toml:"recover_from_panic" yaml:"recover_from_panic" env:"RECOVER_FROM_PANIC"`

	// Metrics records per-tag dispatch metrics.
	Metrics bool `toml:"metrics" yaml:"metrics" env:"METRICS"`

	// SlowHandlerMS logs handlers slower than this many milliseconds.
	// Zero disables the check.
	SlowHandlerMS int `toml:"slow_handler_ms" yaml:"slow_handler_ms" env:"SLOW_HANDLER_MS"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is a zap level name.
	Level string `toml:"level" yaml:"level" env:"LEVEL"`

	// Format is "json" or "console".
	Format string `toml:"format" yaml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:       ":8080",
			Path:       "/ws",
			ReadLimit:  1 << 20,
			SendBuffer: 64,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration and returns every problem found,
// joined. Each problem is a *ValidationError.
func (c Config) Validate() error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, &ValidationError{Field: field, Message: msg})
	}

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		add("server.path", "must start with /")
	}
	if c.Server.ReadLimit <= 0 {
		add("server.read_limit", "must be positive")
	}
	if c.Server.SendBuffer <= 0 {
		add("server.send_buffer", "must be positive")
	}

	switch c.Storage.Backend {
	case "", "memory":
		if c.Storage.Watch {
			add("storage.watch", "requires the dir backend")
		}
	case "bolt", "dir":
		if c.Storage.Path == "" {
			add("storage.path", "required for the "+c.Storage.Backend+" backend")
		}
		if c.Storage.Watch && c.Storage.Backend != "dir" {
			add("storage.watch", "requires the dir backend")
		}
	default:
		add("storage.backend", "must be memory, bolt or dir")
	}

	if c.Files.MaxSize < 0 {
		add("files.max_size", "must not be negative")
	}
	if c.Plugins.TimeoutMS < 0 {
		add("plugins.timeout_ms", "must not be negative")
	}
	if c.Dispatcher.SlowHandlerMS < 0 {
		add("dispatcher.slow_handler_ms", "must not be negative")
	}
	for i, s := range c.Plugins.Scripts {
		if strings.TrimSpace(s) == "" {
			add("plugins.scripts", "entry "+strconv.Itoa(i)+" is empty")
		}
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", err.Error())
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		add("logging.format", "must be json or console")
	}

	return errors.Join(errs...)
}
