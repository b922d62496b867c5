package main

import (
	"fmt"
	"os"

	"github.com/relaysync/relaysync/internal/cli"
	"github.com/relaysync/relaysync/pkg/config"
	"github.com/relaysync/relaysync/pkg/engine"
	"github.com/relaysync/relaysync/pkg/logging"
	"github.com/relaysync/relaysync/pkg/secretbox"
	"github.com/relaysync/relaysync/pkg/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// relaysync is the one-shot management CLI: it builds the same Engine
// relaysyncd runs, but never starts the Scheduler, since every command
// here does its work and exits.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cli.Version, cli.Commit, cli.BuildDate = version, commit, date

	cfg, err := config.LoadEngineConfig()
	if err != nil {
		return fmt.Errorf("failed to load engine config: %w", err)
	}

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

	e := engine.New(s, box, cfg, logging.NewNullLogger())
	cli.SetEngine(e)

	rootCmd := cli.NewRootCommand()
	return rootCmd.Execute()
}
