package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/config"
	"github.com/dshills/portsdriver/internal/logging"
	"github.com/dshills/portsdriver/internal/storage"
	"github.com/dshills/portsdriver/internal/transport/ws"
)

// ServeCmd runs the WebSocket host.
type ServeCmd struct {
	Addr     string        `help:"Listen address, overrides server.addr"`
	LogLevel string        `name:"log-level" help:"Log level (debug, info, warn, error), overrides logging.level"`
	Grace    time.Duration `help:"How long shutdown waits for sessions" default:"10s"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	backend, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	hub := storage.NewHub(backend, storage.WithLogger(logger))
	defer func() {
		if err := hub.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	}()

	if cfg.Storage.Watch {
		ok, err := hub.Watch()
		if err != nil {
			return fmt.Errorf("watch storage: %w", err)
		}
		if !ok {
			logger.Warn("storage backend cannot watch for external changes", zap.String("backend", cfg.Storage.Backend))
		}
	}

	server := ws.NewServer(cfg, ws.Deps{Logger: logger, Storage: hub})

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, server)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("path", cfg.Server.Path),
			zap.String("storage", cfg.Storage.Backend),
			zap.Strings("scripts", cfg.Plugins.Scripts),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Grace)
	defer cancel()

	// Hijacked connections are not tracked by http.Server, so sessions are
	// closed separately.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("closing sessions", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
