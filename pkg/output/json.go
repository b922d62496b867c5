package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/relaysync/relaysync/pkg/models"
)

// JSONFormatter renders output as JSON for automation and scripting.
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a formatter that writes to stdout.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{writer: os.Stdout}
}

func (f *JSONFormatter) encode(v any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type taskView struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	Enabled             bool       `json:"enabled"`
	RemoteHost          string     `json:"remote_host"`
	RemotePort          int        `json:"remote_port"`
	Username            string     `json:"username"`
	LocalDir            string     `json:"local_dir"`
	RemoteDir           string     `json:"remote_dir"`
	IntervalMinutes     int        `json:"interval_minutes"`
	VersionEnabled      bool       `json:"version_enabled"`
	TrashEnabled        bool       `json:"trash_enabled"`
	IsRunning           bool       `json:"is_running"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSyncTime        *time.Time `json:"last_sync_time,omitempty"`
	LastSyncStatus      string     `json:"last_sync_status,omitempty"`
}

func toTaskView(t *models.Task) taskView {
	return taskView{
		ID:                  t.ID,
		Name:                t.Name,
		Enabled:             t.Enabled,
		RemoteHost:          t.RemoteHost,
		RemotePort:          t.RemotePort,
		Username:            t.Username,
		LocalDir:            t.LocalDir,
		RemoteDir:           t.RemoteDir,
		IntervalMinutes:     t.IntervalMinutes,
		VersionEnabled:      t.VersionEnabled,
		TrashEnabled:        t.TrashEnabled,
		IsRunning:           t.IsRunning,
		ConsecutiveFailures: t.ConsecutiveFailures,
		LastSyncTime:        t.LastSyncTime,
		LastSyncStatus:      string(t.LastSyncStatus),
	}
}

// Task renders a single task record.
func (f *JSONFormatter) Task(task *models.Task) error {
	return f.encode(toTaskView(task))
}

// TaskList renders a collection of task records.
func (f *JSONFormatter) TaskList(tasks []*models.Task) error {
	views := make([]taskView, len(tasks))
	for i, t := range tasks {
		views[i] = toTaskView(t)
	}
	return f.encode(views)
}

type logView struct {
	ID        int64   `json:"id"`
	TaskID    int64   `json:"task_id"`
	Timestamp string  `json:"timestamp"`
	Status    string  `json:"status"`
	SyncMode  string  `json:"sync_mode"`
	DurationS float64 `json:"duration_s"`
	Output    string  `json:"output,omitempty"`
}

func toLogView(l *models.Log) logView {
	return logView{
		ID:        l.ID,
		TaskID:    l.TaskID,
		Timestamp: l.Timestamp.Format(time.RFC3339),
		Status:    string(l.Status),
		SyncMode:  string(l.SyncMode),
		DurationS: l.DurationS,
		Output:    l.Output,
	}
}

// Logs renders a task's run history.
func (f *JSONFormatter) Logs(taskName string, logs []*models.Log) error {
	views := make([]logView, len(logs))
	for i, l := range logs {
		views[i] = toLogView(l)
	}
	return f.encode(struct {
		Task string    `json:"task"`
		Logs []logView `json:"logs"`
	}{Task: taskName, Logs: views})
}

// Result renders the outcome of a manually triggered sync.
func (f *JSONFormatter) Result(taskName string, log *models.Log) error {
	return f.encode(struct {
		Task string  `json:"task"`
		Run  logView `json:"run"`
	}{Task: taskName, Run: toLogView(log)})
}

// TestConnection renders the outcome of a connectivity check.
func (f *JSONFormatter) TestConnection(taskName string, ok bool, output string) error {
	return f.encode(struct {
		Task   string `json:"task"`
		OK     bool   `json:"ok"`
		Output string `json:"output,omitempty"`
	}{Task: taskName, OK: ok, Output: output})
}

// Message renders a plain confirmation as a JSON object.
func (f *JSONFormatter) Message(msg string) error {
	return f.encode(struct {
		Message string `json:"message"`
	}{Message: msg})
}

// Error renders an error as a JSON object.
func (f *JSONFormatter) Error(err error) error {
	return f.encode(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}
