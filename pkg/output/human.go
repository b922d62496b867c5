package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/relaysync/relaysync/pkg/models"
)

// HumanFormatter renders output as aligned text tables for interactive use.
type HumanFormatter struct {
	writer io.Writer
}

// NewHumanFormatter creates a formatter that writes to stdout.
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{writer: os.Stdout}
}

func (f *HumanFormatter) tabwriter() *tabwriter.Writer {
	return tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
}

// Task renders a single task record.
func (f *HumanFormatter) Task(task *models.Task) error {
	tw := f.tabwriter()
	fmt.Fprintf(tw, "ID\t%d\n", task.ID)
	fmt.Fprintf(tw, "Name\t%s\n", task.Name)
	fmt.Fprintf(tw, "Enabled\t%t\n", task.Enabled)
	fmt.Fprintf(tw, "Remote\t%s@%s:%d\n", task.Username, task.RemoteHost, task.RemotePort)
	fmt.Fprintf(tw, "Local dir\t%s\n", task.LocalDir)
	fmt.Fprintf(tw, "Remote dir\t%s\n", task.RemoteDir)
	fmt.Fprintf(tw, "Interval\t%dm\n", task.IntervalMinutes)
	fmt.Fprintf(tw, "Versioning\t%t\n", task.VersionEnabled)
	fmt.Fprintf(tw, "Trash\t%t\n", task.TrashEnabled)
	fmt.Fprintf(tw, "Running\t%t\n", task.IsRunning)
	fmt.Fprintf(tw, "Consecutive failures\t%d\n", task.ConsecutiveFailures)
	if task.LastSyncTime != nil {
		fmt.Fprintf(tw, "Last sync\t%s (%s)\n", task.LastSyncTime.Local().Format("2006-01-02 15:04:05"), statusLine(task.LastSyncStatus))
	} else {
		fmt.Fprintf(tw, "Last sync\tnever\n")
	}
	return tw.Flush()
}

// TaskList renders a collection of task records as a table.
func (f *HumanFormatter) TaskList(tasks []*models.Task) error {
	if len(tasks) == 0 {
		fmt.Fprintln(f.writer, "No tasks configured.")
		return nil
	}

	tw := f.tabwriter()
	fmt.Fprintln(tw, "ID\tNAME\tENABLED\tREMOTE\tINTERVAL\tLAST STATUS\tRUNNING")
	for _, t := range tasks {
		last := "never"
		if t.LastSyncTime != nil {
			last = statusLine(t.LastSyncStatus)
		}
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s@%s:%d\t%dm\t%s\t%t\n",
			t.ID, t.Name, t.Enabled, t.Username, t.RemoteHost, t.RemotePort, t.IntervalMinutes, last, t.IsRunning)
	}
	return tw.Flush()
}

// Logs renders a task's run history, most recent first.
func (f *HumanFormatter) Logs(taskName string, logs []*models.Log) error {
	fmt.Fprintf(f.writer, "Run history for %q:\n\n", taskName)
	if len(logs) == 0 {
		fmt.Fprintln(f.writer, "No runs recorded.")
		return nil
	}

	tw := f.tabwriter()
	fmt.Fprintln(tw, "TIMESTAMP\tSTATUS\tMODE\tDURATION")
	for _, l := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			l.Timestamp.Local().Format("2006-01-02 15:04:05"), statusLine(l.Status), l.SyncMode, formatDuration(l.DurationS))
	}
	return tw.Flush()
}

// Result renders the outcome of a manually triggered sync.
func (f *HumanFormatter) Result(taskName string, log *models.Log) error {
	fmt.Fprintf(f.writer, "\nSync %q: %s (%s, %s)\n", taskName, statusLine(log.Status), log.SyncMode, formatDuration(log.DurationS))
	if log.Output != "" {
		fmt.Fprintf(f.writer, "\nOutput (%s):\n%s\n", formatBytes(int64(len(log.Output))), strings.TrimRight(log.Output, "\n"))
	}
	return nil
}

// TestConnection renders the outcome of a connectivity check.
func (f *HumanFormatter) TestConnection(taskName string, ok bool, output string) error {
	verdict := "OK"
	if !ok {
		verdict = "FAILED"
	}
	fmt.Fprintf(f.writer, "Connection test for %q: %s\n", taskName, verdict)
	if output != "" {
		fmt.Fprintf(f.writer, "%s\n", strings.TrimRight(output, "\n"))
	}
	return nil
}

// Message renders a plain confirmation line.
func (f *HumanFormatter) Message(msg string) error {
	fmt.Fprintln(f.writer, msg)
	return nil
}

// Error renders an error.
func (f *HumanFormatter) Error(err error) error {
	fmt.Fprintf(f.writer, "Error: %v\n", err)
	return nil
}

// Name returns the formatter name.
func (f *HumanFormatter) Name() string {
	return "human"
}
