package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/relaysync/relaysync/pkg/output"
)

// NewSyncCommand creates the command that triggers one immediate run of
// a task outside its normal schedule.
func NewSyncCommand() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "sync <id>",
		Short: "Run a task immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := getEngine()
			if err != nil {
				return err
			}
			f, err := formatter()
			if err != nil {
				return err
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}

			task, err := e.GetTask(cmd.Context(), id)
			if err != nil {
				return f.Error(err)
			}

			if watch {
				done := make(chan struct{})
				watchDone := make(chan struct{})
				bar := output.NewProgressBar()
				go func() {
					defer close(watchDone)
					bar.Watch(cmd.Context(), e.Bus, id, done)
				}()
				defer func() {
					close(done)
					<-watchDone
				}()
			}

			log, err := e.SyncTask(cmd.Context(), id)
			if err != nil {
				return f.Error(err)
			}
			return f.Result(task.Name, log)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "show a live progress bar while the run is in flight")
	return cmd
}

// NewLogsCommand creates the command that shows a task's run history.
func NewLogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <id>",
		Short: "Show a task's run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := getEngine()
			if err != nil {
				return err
			}
			f, err := formatter()
			if err != nil {
				return err
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}

			task, err := e.GetTask(cmd.Context(), id)
			if err != nil {
				return f.Error(err)
			}

			logs, err := e.GetLogs(cmd.Context(), id)
			if err != nil {
				return f.Error(err)
			}
			return f.Logs(task.Name, logs)
		},
	}
}

// NewTestConnectionCommand creates the command that checks SSH
// reachability for a task's stored credential without touching files.
func NewTestConnectionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection <id>",
		Short: "Check SSH connectivity for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := getEngine()
			if err != nil {
				return err
			}
			f, err := formatter()
			if err != nil {
				return err
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}

			task, err := e.GetTask(cmd.Context(), id)
			if err != nil {
				return f.Error(err)
			}

			ok, out, err := e.TestConnection(cmd.Context(), id)
			if err != nil {
				return f.Error(err)
			}
			return f.TestConnection(task.Name, ok, out)
		},
	}
}
