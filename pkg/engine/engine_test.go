package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/relaysync/relaysync/pkg/config"
	"github.com/relaysync/relaysync/pkg/models"
	"github.com/relaysync/relaysync/pkg/secretbox"
	"github.com/relaysync/relaysync/pkg/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir, err := os.MkdirTemp("", "engine-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp() error = %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := store.Open(dir + "/relaysync.db")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	box, err := secretbox.New([]byte("test-key"))
	if err != nil {
		t.Fatalf("secretbox.New() error = %v", err)
	}

	cfg := &config.EngineConfig{
		SSHMkdirTimeout: time.Second, SSHFindTimeout: time.Second,
		SSHTrashMoveTimeout: time.Second, SSHVersionCleanupTimeout: time.Second,
		RsyncTimeout: time.Second, SFTPTimeout: time.Second,
		MaxVersions: 10, StaleTaskThreshold: 24 * time.Hour, TrashRetentionDays: 90,
		SSHTrashCleanupTimeout: time.Second, SSHTestConnectionTimeout: time.Second,
	}

	return New(s, box, cfg, nil)
}

func taskInput() *models.Task {
	return &models.Task{
		Name: "backup", RemoteHost: "nas.local", RemotePort: 22, Username: "alice",
		LocalDir: "/tmp", RemoteDir: "/srv/backup", IntervalMinutes: 60,
	}
}

func TestCreateTaskStripsPasswordAndStartsTimer(t *testing.T) {
	e := newTestEngine(t)
	defer e.Shutdown()

	ctx := context.Background()
	task := taskInput()
	task.Enabled = true

	created, err := e.CreateTask(ctx, task, "hunter2")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if created.PasswordCT != "" {
		t.Errorf("CreateTask() returned PasswordCT = %q, want stripped", created.PasswordCT)
	}

	if !e.Scheduler.IsTaskScheduled(created.ID) {
		t.Error("CreateTask() should start a scheduler timer for an enabled task")
	}

	stored, err := e.Store.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if stored.PasswordCT == "" || !secretbox.LooksEncrypted(stored.PasswordCT) {
		t.Errorf("stored task password_ct = %q, want an encrypted ciphertext", stored.PasswordCT)
	}
}

func TestCreateTaskRejectsInvalidInput(t *testing.T) {
	e := newTestEngine(t)
	defer e.Shutdown()

	task := taskInput()
	task.Name = ""

	if _, err := e.CreateTask(context.Background(), task, ""); err == nil {
		t.Error("CreateTask() should reject a task with no name")
	}
}

func TestToggleTaskStopsAndStartsTimer(t *testing.T) {
	e := newTestEngine(t)
	defer e.Shutdown()

	ctx := context.Background()
	task := taskInput()
	task.Enabled = true
	created, err := e.CreateTask(ctx, task, "")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if _, err := e.ToggleTask(ctx, created.ID, false); err != nil {
		t.Fatalf("ToggleTask(false) error = %v", err)
	}
	if e.Scheduler.IsTaskScheduled(created.ID) {
		t.Error("ToggleTask(false) should stop the scheduler timer")
	}

	if _, err := e.ToggleTask(ctx, created.ID, true); err != nil {
		t.Fatalf("ToggleTask(true) error = %v", err)
	}
	if !e.Scheduler.IsTaskScheduled(created.ID) {
		t.Error("ToggleTask(true) should restart the scheduler timer")
	}
}

func TestDeleteTaskRemovesIt(t *testing.T) {
	e := newTestEngine(t)
	defer e.Shutdown()

	ctx := context.Background()
	created, err := e.CreateTask(ctx, taskInput(), "")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if err := e.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := e.GetTask(ctx, created.ID); err != models.ErrNotFound {
		t.Errorf("GetTask() after delete error = %v, want ErrNotFound", err)
	}
}

func TestSyncTaskRejectsUnknownTask(t *testing.T) {
	e := newTestEngine(t)
	defer e.Shutdown()

	if _, err := e.SyncTask(context.Background(), 999); err != models.ErrNotFound {
		t.Errorf("SyncTask() error = %v, want ErrNotFound", err)
	}
}

func TestGetLogsRejectsUnknownTask(t *testing.T) {
	e := newTestEngine(t)
	defer e.Shutdown()

	if _, err := e.GetLogs(context.Background(), 999); err != models.ErrNotFound {
		t.Errorf("GetLogs() error = %v, want ErrNotFound", err)
	}
}
