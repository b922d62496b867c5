package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaysync/relaysync/pkg/config"
	"github.com/relaysync/relaysync/pkg/engine"
	"github.com/relaysync/relaysync/pkg/logging"
	"github.com/relaysync/relaysync/pkg/secretbox"
	"github.com/relaysync/relaysync/pkg/store"
)

// relaysyncd is the background daemon: it builds one Engine, starts its
// Scheduler, and blocks until asked to stop.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relaysyncd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadEngineConfig()
	if err != nil {
		return fmt.Errorf("failed to load engine config: %w", err)
	}

	appCfg, err := config.LoadDefault()
	if err != nil {
		return fmt.Errorf("failed to load ambient config: %w", err)
	}

	logger, err := newLogger(appCfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Close()

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	keyMaterial, err := secretbox.LoadOrCreateKey(cfg.SecretKeyPath)
	if err != nil {
		return fmt.Errorf("failed to load secret key: %w", err)
	}
	box, err := secretbox.New(keyMaterial)
	if err != nil {
		return fmt.Errorf("failed to build secret box: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := s.MigratePlaintextPasswords(ctx, box); err != nil {
		return fmt.Errorf("failed to migrate plaintext passwords: %w", err)
	}

	e := engine.New(s, box, cfg, logger)
	if err := e.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	logger.Info(ctx, "relaysyncd started", logging.Fields{"db_path": cfg.DBPath})
	<-ctx.Done()
	logger.Info(ctx, "relaysyncd shutting down", nil)

	return e.Shutdown()
}

func newLogger(cfg config.LoggingConfig) (logging.Logger, error) {
	if !cfg.Enabled || cfg.File == "" {
		return logging.NewNullLogger(), nil
	}

	format := logging.FormatText
	if cfg.Format == "json" {
		format = logging.FormatJSON
	}

	return logging.NewFileLogger(logging.FileLoggerConfig{
		Path:   cfg.File,
		Format: format,
		Level:  logging.ParseLevel(cfg.Level),
	})
}
