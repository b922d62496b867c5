package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	Output     string
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/relaysync/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"verbose output (accepted; no command reads it)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output (accepted; no command reads it)",
	)
	cmd.PersistentFlags().StringVarP(
		&globalFlags.Output,
		"output",
		"o",
		"",
		"output format: human, json (default from config)",
	)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() *GlobalFlags {
	return &globalFlags
}
