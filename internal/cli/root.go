package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the relaysync command tree. SetEngine must be
// called before Execute; every subcommand other than version/config
// dispatches to the installed Engine.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relaysync",
		Short: "Manage relaysyncd's scheduled remote sync tasks",
		Long: `relaysync is the management CLI for relaysyncd, a background daemon
that periodically replicates local directories to a remote host over
SSH using rsync, falling back to sftp when rsync is unavailable.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewTaskCommand())
	rootCmd.AddCommand(NewSyncCommand())
	rootCmd.AddCommand(NewLogsCommand())
	rootCmd.AddCommand(NewTestConnectionCommand())

	return rootCmd
}
