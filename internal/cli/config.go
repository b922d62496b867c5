package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaysync/relaysync/pkg/config"
)

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View or modify relaysync's ambient configuration (output and logging).`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigInitCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Printf("Output Format:   %s\n", cfg.Output.Format)
			fmt.Printf("Output Progress: %t\n", cfg.Output.Progress)
			fmt.Printf("Output Quiet:    %t\n", cfg.Output.Quiet)
			fmt.Printf("Logging Enabled: %t\n", cfg.Logging.Enabled)
			fmt.Printf("Log Format:      %s\n", cfg.Logging.Format)
			fmt.Printf("Log Level:       %s\n", cfg.Logging.Level)
			fmt.Printf("Log File:        %s\n", cfg.Logging.File)

			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}

			cfg := config.Default()
			if err := config.SaveToFile(cfg, path); err != nil {
				return err
			}

			fmt.Printf("Configuration file created at: %s\n", path)
			return nil
		},
	}
}

// loadConfig loads the ambient configuration from the --config flag's
// path, or the default location.
func loadConfig() (*config.Config, error) {
	if globalFlags.ConfigFile != "" {
		return config.LoadFromFile(globalFlags.ConfigFile)
	}
	return config.LoadDefault()
}
