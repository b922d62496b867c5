package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/relaysync/relaysync/pkg/models"
)

// taskFlags holds the fields a task create/update command can set. Not
// every field is settable through every subcommand; create requires
// name/host/user/local-dir/remote-dir, update applies only the flags
// given on the command line and leaves every other field unchanged.
type taskFlags struct {
	name       string
	host       string
	port       int
	user       string
	password   string
	localDir   string
	remoteDir  string
	interval   int
	versioning bool
	trash      bool
	enabled    bool
}

func addTaskFlags(cmd *cobra.Command, f *taskFlags) {
	cmd.Flags().StringVar(&f.name, "name", "", "task name")
	cmd.Flags().StringVar(&f.host, "host", "", "remote host")
	cmd.Flags().IntVar(&f.port, "port", 22, "remote SSH port")
	cmd.Flags().StringVar(&f.user, "user", "", "remote username")
	cmd.Flags().StringVar(&f.password, "password", "", "remote password (or set RELAYSYNC_PASSWORD)")
	cmd.Flags().StringVar(&f.localDir, "local-dir", "", "local directory to sync")
	cmd.Flags().StringVar(&f.remoteDir, "remote-dir", "", "remote directory, POSIX path")
	cmd.Flags().IntVar(&f.interval, "interval", 60, "sync interval in minutes")
	cmd.Flags().BoolVar(&f.versioning, "versioning", false, "keep timestamped versions of overwritten files under the remote .versions directory")
	cmd.Flags().BoolVar(&f.trash, "trash", false, "move deleted files to a remote trash directory")
	cmd.Flags().BoolVar(&f.enabled, "enabled", true, "start the task's schedule immediately")
}

// resolvePassword returns the CLI password flag if set, falling back to
// RELAYSYNC_PASSWORD so the credential never has to appear in argv
// where a process listing could read it.
func (f *taskFlags) resolvePassword() string {
	if f.password != "" {
		return f.password
	}
	return os.Getenv("RELAYSYNC_PASSWORD")
}

func (f *taskFlags) toTask() *models.Task {
	return &models.Task{
		Name:            f.name,
		Enabled:         f.enabled,
		RemoteHost:      f.host,
		RemotePort:      f.port,
		Username:        f.user,
		LocalDir:        f.localDir,
		RemoteDir:       f.remoteDir,
		IntervalMinutes: f.interval,
		VersionEnabled:  f.versioning,
		TrashEnabled:    f.trash,
	}
}

// NewTaskCommand creates the task management command group.
func NewTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage sync tasks",
		Long:  `Create, inspect, and modify the recurring sync tasks relaysyncd runs.`,
	}

	cmd.AddCommand(newTaskListCommand())
	cmd.AddCommand(newTaskGetCommand())
	cmd.AddCommand(newTaskCreateCommand())
	cmd.AddCommand(newTaskUpdateCommand())
	cmd.AddCommand(newTaskDeleteCommand())
	cmd.AddCommand(newTaskToggleCommand())

	return cmd
}

func newTaskListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := getEngine()
			if err != nil {
				return err
			}
			f, err := formatter()
			if err != nil {
				return err
			}

			tasks, err := e.ListTasks(cmd.Context())
			if err != nil {
				return f.Error(err)
			}
			return f.TaskList(tasks)
		},
	}
}

func newTaskGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a single task",
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
			return f.Task(task)
		},
	}
}

func newTaskCreateCommand() *cobra.Command {
	var tf taskFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new sync task",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := getEngine()
			if err != nil {
				return err
			}
			f, err := formatter()
			if err != nil {
				return err
			}

			created, err := e.CreateTask(cmd.Context(), tf.toTask(), tf.resolvePassword())
			if err != nil {
				return f.Error(err)
			}
			return f.Task(created)
		},
	}
	addTaskFlags(cmd, &tf)
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("host")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("local-dir")
	cmd.MarkFlagRequired("remote-dir")
	return cmd
}

func newTaskUpdateCommand() *cobra.Command {
	var tf taskFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an existing task's settings",
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

			existing, err := e.GetTask(cmd.Context(), id)
			if err != nil {
				return f.Error(err)
			}

			applyTaskFlagOverrides(cmd, existing, &tf)
			existing.ID = id

			updated, err := e.UpdateTask(cmd.Context(), existing, tf.resolvePassword())
			if err != nil {
				return f.Error(err)
			}
			return f.Task(updated)
		},
	}
	addTaskFlags(cmd, &tf)
	return cmd
}

// applyTaskFlagOverrides overwrites task with any flag the caller
// explicitly set on cmd, leaving the stored value alone otherwise, so
// `task update <id> --interval 30` doesn't clobber every other field.
func applyTaskFlagOverrides(cmd *cobra.Command, task *models.Task, tf *taskFlags) {
	flags := cmd.Flags()
	if flags.Changed("name") {
		task.Name = tf.name
	}
	if flags.Changed("host") {
		task.RemoteHost = tf.host
	}
	if flags.Changed("port") {
		task.RemotePort = tf.port
	}
	if flags.Changed("user") {
		task.Username = tf.user
	}
	if flags.Changed("local-dir") {
		task.LocalDir = tf.localDir
	}
	if flags.Changed("remote-dir") {
		task.RemoteDir = tf.remoteDir
	}
	if flags.Changed("interval") {
		task.IntervalMinutes = tf.interval
	}
	if flags.Changed("versioning") {
		task.VersionEnabled = tf.versioning
	}
	if flags.Changed("trash") {
		task.TrashEnabled = tf.trash
	}
	if flags.Changed("enabled") {
		task.Enabled = tf.enabled
	}
}

func newTaskDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and its run history",
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

			if err := e.DeleteTask(cmd.Context(), id); err != nil {
				return f.Error(err)
			}
			return f.Message(fmt.Sprintf("task %d deleted", id))
		},
	}
}

func newTaskToggleCommand() *cobra.Command {
	var enable bool
	cmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable or disable a task",
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

			task, err := e.ToggleTask(cmd.Context(), id, enable)
			if err != nil {
				return f.Error(err)
			}
			return f.Task(task)
		},
	}
	cmd.Flags().BoolVar(&enable, "enabled", true, "desired enabled state")
	return cmd
}
