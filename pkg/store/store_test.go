package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relaysync/relaysync/pkg/models"
	"github.com/relaysync/relaysync/pkg/secretbox"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "store-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp() error = %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := Open(filepath.Join(dir, "relaysync.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func newTestTask() *models.Task {
	return &models.Task{
		Name:            "nightly-photos",
		Enabled:         true,
		RemoteHost:      "backup.example.com",
		RemotePort:      22,
		Username:        "alice",
		PasswordCT:      "v1:abc",
		LocalDir:        "/home/alice/photos",
		RemoteDir:       "/srv/backups/photos",
		IntervalMinutes: 60,
	}
}

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, newTestTask())
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	got, err := s.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Name != "nightly-photos" || got.RemoteHost != "backup.example.com" {
		t.Errorf("GetTask() = %+v, unexpected fields", got)
	}
	if !got.Enabled {
		t.Error("Enabled = false, want true")
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetTask(context.Background(), 999); err != models.ErrNotFound {
		t.Errorf("GetTask() error = %v, want ErrNotFound", err)
	}
}

func TestListTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateTask(ctx, newTestTask())
	task2 := newTestTask()
	task2.Name = "weekly-docs"
	s.CreateTask(ctx, task2)

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
}

func TestListEnabledTasksExcludesDisabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.CreateTask(ctx, newTestTask())
	s.SetEnabled(ctx, id, false)

	task2 := newTestTask()
	task2.Name = "still-enabled"
	s.CreateTask(ctx, task2)

	tasks, err := s.ListEnabledTasks(ctx)
	if err != nil {
		t.Fatalf("ListEnabledTasks() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "still-enabled" {
		t.Errorf("ListEnabledTasks() = %+v, want only still-enabled", tasks)
	}
}

func TestUpdateTaskPreservesPasswordWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTestTask()
	id, _ := s.CreateTask(ctx, task)

	updated, _ := s.GetTask(ctx, id)
	updated.Name = "renamed"
	updated.PasswordCT = ""
	if err := s.UpdateTask(ctx, updated); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	got, _ := s.GetTask(ctx, id)
	if got.Name != "renamed" {
		t.Errorf("Name = %q, want renamed", got.Name)
	}
	if got.PasswordCT != "v1:abc" {
		t.Errorf("PasswordCT = %q, want unchanged v1:abc", got.PasswordCT)
	}
}

func TestDeleteTaskCascadesLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.CreateTask(ctx, newTestTask())
	if err := s.AcquireLock(ctx, id); err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if err := s.RecordRun(ctx, id, models.StatusSuccess, "ok", 1.5, models.ModeRsync); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	if err := s.DeleteTask(ctx, id); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}

	logs, err := s.GetLogs(ctx, id)
	if err != nil {
		t.Fatalf("GetLogs() error = %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("len(logs) = %d, want 0 after cascading delete", len(logs))
	}
}

func TestAcquireLockRejectsConcurrentRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.CreateTask(ctx, newTestTask())

	if err := s.AcquireLock(ctx, id); err != nil {
		t.Fatalf("first AcquireLock() error = %v", err)
	}
	if err := s.AcquireLock(ctx, id); err != models.ErrAlreadyRunning {
		t.Errorf("second AcquireLock() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestAcquireLockClearsStaleLock(t *testing.T) {
	s := newTestStore(t)
	s.StaleThreshold = 10 * time.Millisecond
	ctx := context.Background()
	id, _ := s.CreateTask(ctx, newTestTask())

	if err := s.AcquireLock(ctx, id); err != nil {
		t.Fatalf("first AcquireLock() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if err := s.AcquireLock(ctx, id); err != nil {
		t.Errorf("AcquireLock() over a stale lock error = %v, want nil", err)
	}
}

func TestRecordRunResetsFailuresOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.CreateTask(ctx, newTestTask())

	s.AcquireLock(ctx, id)
	s.RecordRun(ctx, id, models.StatusFail, "boom", 1, models.ModeRsync)
	s.AcquireLock(ctx, id)
	s.RecordRun(ctx, id, models.StatusSuccess, "ok", 1, models.ModeRsync)

	task, _ := s.GetTask(ctx, id)
	if task.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", task.ConsecutiveFailures)
	}
	if task.IsRunning {
		t.Error("IsRunning = true, want false after RecordRun")
	}
}

func TestRecordRunAutoDisablesAfterMaxConsecutiveFailures(t *testing.T) {
	s := newTestStore(t)
	s.MaxConsecutiveFailures = 3
	ctx := context.Background()
	id, _ := s.CreateTask(ctx, newTestTask())

	for i := 0; i < 3; i++ {
		if err := s.AcquireLock(ctx, id); err != nil {
			t.Fatalf("AcquireLock() iteration %d error = %v", i, err)
		}
		if err := s.RecordRun(ctx, id, models.StatusFail, "boom", 1, models.ModeRsync); err != nil {
			t.Fatalf("RecordRun() iteration %d error = %v", i, err)
		}
	}

	task, _ := s.GetTask(ctx, id)
	if task.Enabled {
		t.Error("Enabled = true, want false after MaxConsecutiveFailures")
	}
	if task.ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3", task.ConsecutiveFailures)
	}
}

func TestRecordRunTrimsLogsBeyondMaxLogs(t *testing.T) {
	s := newTestStore(t)
	s.MaxLogs = 3
	ctx := context.Background()
	id, _ := s.CreateTask(ctx, newTestTask())

	for i := 0; i < 5; i++ {
		s.AcquireLock(ctx, id)
		s.RecordRun(ctx, id, models.StatusSuccess, "ok", 1, models.ModeRsync)
	}

	logs, err := s.GetLogs(ctx, id)
	if err != nil {
		t.Fatalf("GetLogs() error = %v", err)
	}
	if len(logs) != 3 {
		t.Errorf("len(logs) = %d, want 3", len(logs))
	}
}

func TestSetEnabledResetsConsecutiveFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.CreateTask(ctx, newTestTask())

	s.AcquireLock(ctx, id)
	s.RecordRun(ctx, id, models.StatusFail, "boom", 1, models.ModeRsync)

	if err := s.SetEnabled(ctx, id, true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}

	task, _ := s.GetTask(ctx, id)
	if task.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 after SetEnabled", task.ConsecutiveFailures)
	}
}

func TestMigratePlaintextPasswords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTestTask()
	task.PasswordCT = "hunter2" // plaintext, as if written by a pre-encryption version
	id, _ := s.CreateTask(ctx, task)

	box, err := secretbox.New([]byte("test-key"))
	if err != nil {
		t.Fatalf("secretbox.New() error = %v", err)
	}

	if err := s.MigratePlaintextPasswords(ctx, box); err != nil {
		t.Fatalf("MigratePlaintextPasswords() error = %v", err)
	}

	got, _ := s.GetTask(ctx, id)
	if !secretbox.LooksEncrypted(got.PasswordCT) {
		t.Errorf("PasswordCT = %q, want it to look encrypted", got.PasswordCT)
	}

	plaintext, err := box.Decrypt(got.PasswordCT)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plaintext != "hunter2" {
		t.Errorf("decrypted password = %q, want hunter2", plaintext)
	}
}
