package sync

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/relaysync/relaysync/pkg/config"
	"github.com/relaysync/relaysync/pkg/events"
	"github.com/relaysync/relaysync/pkg/models"
	"github.com/relaysync/relaysync/pkg/secretbox"
	"github.com/relaysync/relaysync/pkg/store"
)

func newTestScheduler(t *testing.T, execute ExecuteFunc) (*Scheduler, *store.Store) {
	t.Helper()
	dir, err := os.MkdirTemp("", "scheduler-test-*")
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

	cfg := &config.EngineConfig{StaleTaskThreshold: 24 * time.Hour, TrashRetentionDays: 90, SSHTrashCleanupTimeout: time.Second}

	if execute == nil {
		execute = func(ctx context.Context, taskID int64) *Result { return &Result{Success: true} }
	}

	return NewScheduler(s, events.New(), box, nil, cfg, execute), s
}

func TestStartTaskSchedulerIsIdempotent(t *testing.T) {
	sched, _ := newTestScheduler(t, nil)
	defer sched.Shutdown()

	sched.startTaskScheduler(1, 60)
	sched.startTaskScheduler(1, 60)
	sched.startTaskScheduler(1, 60)

	sched.mu.Lock()
	count := len(sched.timers)
	sched.mu.Unlock()

	if count != 1 {
		t.Errorf("len(timers) = %d, want 1 after repeated startTaskScheduler", count)
	}
}

func TestStopTaskSchedulerClearsTimer(t *testing.T) {
	sched, _ := newTestScheduler(t, nil)
	defer sched.Shutdown()

	sched.startTaskScheduler(1, 60)
	sched.stopTaskScheduler(1)

	sched.mu.Lock()
	_, exists := sched.timers[1]
	sched.mu.Unlock()

	if exists {
		t.Error("timer for id 1 should be removed after stopTaskScheduler")
	}
}

func TestTickSkipsRunningNonStaleTask(t *testing.T) {
	var executed bool
	sched, s := newTestScheduler(t, func(ctx context.Context, taskID int64) *Result {
		executed = true
		return &Result{Success: true}
	})
	defer sched.Shutdown()

	ctx := context.Background()
	id, _ := s.CreateTask(ctx, &models.Task{
		Name: "t", RemoteHost: "h", RemotePort: 22, Username: "u",
		LocalDir: "/tmp", RemoteDir: "/srv/backup", IntervalMinutes: 60, Enabled: true,
	})
	s.AcquireLock(ctx, id)

	sched.tick(ctx, id)

	if executed {
		t.Error("tick() should skip a task whose lock is running and not stale")
	}
}

func TestTickReleasesStaleLockAndProceeds(t *testing.T) {
	var executed bool
	sched, s := newTestScheduler(t, func(ctx context.Context, taskID int64) *Result {
		executed = true
		return &Result{Success: true}
	})
	sched.Config.StaleTaskThreshold = 10 * time.Millisecond
	defer sched.Shutdown()

	ctx := context.Background()
	id, _ := s.CreateTask(ctx, &models.Task{
		Name: "t", Enabled: true, RemoteHost: "h", RemotePort: 22, Username: "u",
		LocalDir: "/tmp", RemoteDir: "/srv/backup", IntervalMinutes: 60,
	})
	s.AcquireLock(ctx, id)

	time.Sleep(20 * time.Millisecond)
	sched.tick(ctx, id)

	if !executed {
		t.Error("tick() should proceed after releasing a stale lock")
	}
}

func TestTickStopsTimerForDisabledTask(t *testing.T) {
	sched, s := newTestScheduler(t, nil)
	defer sched.Shutdown()

	ctx := context.Background()
	id, _ := s.CreateTask(ctx, &models.Task{
		Name: "t", RemoteHost: "h", RemotePort: 22, Username: "u",
		LocalDir: "/tmp", RemoteDir: "/srv/backup", IntervalMinutes: 60,
	})
	s.SetEnabled(ctx, id, false)
	sched.startTaskScheduler(id, 60)

	sched.tick(ctx, id)

	sched.mu.Lock()
	_, exists := sched.timers[id]
	sched.mu.Unlock()
	if exists {
		t.Error("tick() should stop the timer once the task is disabled")
	}
}

func TestDurationUntilNextMidnight(t *testing.T) {
	now := time.Date(2026, 8, 3, 23, 0, 0, 0, time.UTC)
	d := durationUntilNextMidnight(now)
	if d <= 0 || d > time.Hour {
		t.Errorf("durationUntilNextMidnight(%v) = %v, want (0, 1h]", now, d)
	}
}
