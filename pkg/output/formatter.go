// Package output renders the management surface's results: task
// records, run logs, connection tests, and the outcome of a manually
// triggered sync. Two formatters are provided, selected by the CLI's
// --output flag: human (aligned text) and json (machine-readable).
package output

import (
	"fmt"
	"time"

	"github.com/relaysync/relaysync/pkg/models"
)

// Formatter is implemented by each output mode the CLI supports.
type Formatter interface {
	// Task renders a single task record.
	Task(task *models.Task) error
	// TaskList renders a collection of task records.
	TaskList(tasks []*models.Task) error
	// Logs renders a task's run history.
	Logs(taskName string, logs []*models.Log) error
	// Result renders the outcome of a manually triggered sync.
	Result(taskName string, log *models.Log) error
	// TestConnection renders the outcome of a connectivity check.
	TestConnection(taskName string, ok bool, output string) error
	// Message renders a plain confirmation, e.g. after delete.
	Message(msg string) error
	// Error renders an error.
	Error(err error) error
	// Name returns the formatter's identifier, e.g. "human" or "json".
	Name() string
}

// New returns the formatter registered under name, or an error if name
// is not recognized.
func New(name string) (Formatter, error) {
	switch name {
	case "", "human":
		return NewHumanFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", models.ErrInputInvalid, name)
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", seconds)
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func statusLine(status models.SyncStatus) string {
	if status == models.StatusSuccess {
		return "success"
	}
	return "fail"
}
