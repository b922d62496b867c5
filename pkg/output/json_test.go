package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/relaysync/relaysync/pkg/models"
)

func TestJSONTaskList(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{writer: &buf}

	tasks := []*models.Task{
		{ID: 1, Name: "photos", Enabled: true, RemoteHost: "nas.local", RemotePort: 22, Username: "alice", IntervalMinutes: 30},
	}
	if err := f.TaskList(tasks); err != nil {
		t.Fatalf("TaskList() error = %v", err)
	}

	var got []taskView
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 1 || got[0].Name != "photos" || got[0].RemotePort != 22 {
		t.Errorf("TaskList() decoded = %+v, want one task named photos on port 22", got)
	}
}

func TestJSONResult(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{writer: &buf}

	log := &models.Log{Timestamp: time.Now(), Status: models.StatusFail, SyncMode: models.ModeSFTP, DurationS: 3.2, Output: "connection refused"}
	if err := f.Result("backup", log); err != nil {
		t.Fatalf("Result() error = %v", err)
	}

	var got struct {
		Task string  `json:"task"`
		Run  logView `json:"run"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if got.Task != "backup" || got.Run.Status != "fail" || got.Run.SyncMode != "sftp" {
		t.Errorf("Result() decoded = %+v, unexpected", got)
	}
}

func TestJSONError(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{writer: &buf}

	if err := f.Error(models.ErrNotFound); err != nil {
		t.Fatalf("Error() error = %v", err)
	}

	var got struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if got.Error != models.ErrNotFound.Error() {
		t.Errorf("Error() decoded = %q, want %q", got.Error, models.ErrNotFound.Error())
	}
}

func TestNewFormatter(t *testing.T) {
	if f, err := New("human"); err != nil || f.Name() != "human" {
		t.Errorf("New(\"human\") = %v, %v", f, err)
	}
	if f, err := New(""); err != nil || f.Name() != "human" {
		t.Errorf("New(\"\") = %v, %v, want default human", f, err)
	}
	if f, err := New("json"); err != nil || f.Name() != "json" {
		t.Errorf("New(\"json\") = %v, %v", f, err)
	}
	if _, err := New("xml"); err == nil {
		t.Error("New(\"xml\") should error for an unknown format")
	}
}
