package config

import (
	"github.com/relaysync/relaysync/pkg/models"
)

// Config represents the ambient, human-edited application configuration.
// Operational tunables (timeouts, retention) live in EngineConfig (env.go)
// per §6's environment-variable contract.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// OutputConfig holds output-related settings for the management CLI.
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // shown by 'config show' only; the sync bar is drawn with --watch
	Quiet    bool   `yaml:"quiet"`    // shown by 'config show' only; no output is suppressed
}

// LoggingConfig holds logging-related settings.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"` // "json" or "text"
	Level   string `yaml:"level"`  // "debug", "info", "warn", "error"
	File    string `yaml:"file"`   // log file path (empty = disabled)
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Format:  "json",
			Level:   "info",
			File:    "",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{Field: "output.format", Message: "must be 'human' or 'json'"}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{Field: "logging.format", Message: "must be 'json' or 'text'"}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{Field: "logging.level", Message: "must be 'debug', 'info', 'warn', or 'error'"}
	}

	return nil
}
