package sync

import (
	"context"
	"sync"
	"time"

	"github.com/relaysync/relaysync/pkg/config"
	"github.com/relaysync/relaysync/pkg/events"
	"github.com/relaysync/relaysync/pkg/logging"
	"github.com/relaysync/relaysync/pkg/remote"
	"github.com/relaysync/relaysync/pkg/secretbox"
	"github.com/relaysync/relaysync/pkg/store"
)

// ExecuteFunc runs one sync for a task. The Scheduler is constructed
// with one of these rather than a direct Orchestrator reference, per
// the inverted-dependency design in §9: the Scheduler knows nothing
// about the Orchestrator's internals, only that it can be asked to run
// a task id.
type ExecuteFunc func(ctx context.Context, taskID int64) *Result

// taskTimer holds the running goroutine for one task's periodic tick.
type taskTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler maintains one periodic timer per enabled task plus a daily
// trash-retention sweep, per §4.6. The in-memory timer map is the
// Scheduler's only state; task state of record always lives in the Store.
type Scheduler struct {
	Store   *store.Store
	Bus     *events.Bus
	Box     *secretbox.Box
	Logger  logging.Logger
	Config  *config.EngineConfig
	Execute ExecuteFunc

	mu     sync.Mutex
	timers map[int64]*taskTimer

	sweep *taskTimer

	wg sync.WaitGroup
}

// NewScheduler builds a Scheduler with an empty timer set. Call Init to
// load enabled tasks and start their timers.
func NewScheduler(s *store.Store, bus *events.Bus, box *secretbox.Box, logger logging.Logger, cfg *config.EngineConfig, execute ExecuteFunc) *Scheduler {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Scheduler{
		Store:   s,
		Bus:     bus,
		Box:     box,
		Logger:  logger,
		Config:  cfg,
		Execute: execute,
		timers:  make(map[int64]*taskTimer),
	}
}

// Init loads every enabled task and starts one timer each, then starts
// the daily trash sweep. Call once at process startup.
func (s *Scheduler) Init(ctx context.Context) error {
	tasks, err := s.Store.ListEnabledTasks(ctx)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		s.startTaskScheduler(t.ID, t.IntervalMinutes)
	}
	s.startTrashSweep()
	return nil
}

// Shutdown stops every timer and waits for in-flight tick goroutines to
// return. An Execute call already running inside a tick has its context
// cancelled, and Shutdown waits for it to return.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for id := range s.timers {
		s.stopTimerLocked(id)
	}
	if s.sweep != nil {
		s.sweep.cancel()
		s.sweep = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// StartTask starts a periodic timer for a task that the engine has
// just created or re-enabled. Idempotent: a task that already has a
// running timer is left untouched.
func (s *Scheduler) StartTask(taskID int64, intervalMinutes int) {
	s.startTaskScheduler(taskID, intervalMinutes)
}

// StopTask clears a task's timer, used by the engine after delete or
// disable.
func (s *Scheduler) StopTask(taskID int64) {
	s.stopTaskScheduler(taskID)
}

// RestartTask stops and, if the task is still enabled, restarts its
// timer, used by the engine after an update changes the interval.
func (s *Scheduler) RestartTask(ctx context.Context, taskID int64) {
	s.restartTaskScheduler(ctx, taskID)
}

// IsTaskScheduled reports whether a task currently has a running timer.
// Exposed for callers outside the package (engine, tests) that need to
// observe scheduler state without reaching into its internals.
func (s *Scheduler) IsTaskScheduled(taskID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.timers[taskID]
	return exists
}

// startTaskScheduler is idempotent: a second call for an id that
// already has a timer does nothing, per §4.6.
func (s *Scheduler) startTaskScheduler(taskID int64, intervalMinutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.timers[taskID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	timer := &taskTimer{cancel: cancel, done: make(chan struct{})}
	s.timers[taskID] = timer

	s.wg.Add(1)
	go s.runTaskLoop(ctx, taskID, time.Duration(intervalMinutes)*time.Minute, timer.done)
}

// restartTaskScheduler stops any existing timer for id, then starts a
// fresh one if the task is still enabled. Used after updateTask changes
// the interval, per §6.
func (s *Scheduler) restartTaskScheduler(ctx context.Context, taskID int64) {
	s.stopTaskScheduler(taskID)

	task, err := s.Store.GetTask(ctx, taskID)
	if err != nil || !task.Enabled {
		return
	}
	s.startTaskScheduler(task.ID, task.IntervalMinutes)
}

// stopTaskScheduler clears the timer for taskID, if one exists.
func (s *Scheduler) stopTaskScheduler(taskID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked(taskID)
}

func (s *Scheduler) stopTimerLocked(taskID int64) {
	timer, exists := s.timers[taskID]
	if !exists {
		return
	}
	timer.cancel()
	delete(s.timers, taskID)
}

// runTaskLoop fires tick on every interval until ctx is cancelled.
func (s *Scheduler) runTaskLoop(ctx context.Context, taskID int64, interval time.Duration, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, taskID)
		}
	}
}

// tick implements the per-tick logic of §4.6: re-read, stop on
// missing/disabled, force-release a stale lock, then invoke Execute.
func (s *Scheduler) tick(ctx context.Context, taskID int64) {
	task, err := s.Store.GetTask(ctx, taskID)
	if err != nil {
		s.stopTaskScheduler(taskID)
		return
	}
	if !task.Enabled {
		s.stopTaskScheduler(taskID)
		return
	}

	if task.IsRunning {
		stale := task.StartedAt != nil && time.Since(*task.StartedAt) > s.Config.StaleTaskThreshold
		if !stale {
			return
		}
		if err := s.Store.ReleaseStaleLock(ctx, taskID); err != nil {
			s.Logger.Warn(ctx, "failed to release stale lock", logging.Fields{"task_id": taskID, "error": err.Error()})
			return
		}
		s.Bus.PublishUpdate()
	}

	if result := s.Execute(ctx, taskID); result != nil && result.Error != nil {
		s.Logger.Warn(ctx, "scheduled sync run failed", logging.Fields{"task_id": taskID, "error": result.Error.Error()})
	}
}

// startTrashSweep starts the daily trash-retention sweep timer, firing
// first at the next local midnight and every 24h after that.
func (s *Scheduler) startTrashSweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweep != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.sweep = &taskTimer{cancel: cancel, done: make(chan struct{})}

	s.wg.Add(1)
	go s.runSweepLoop(ctx, s.sweep.done)
}

func (s *Scheduler) runSweepLoop(ctx context.Context, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	timer := time.NewTimer(durationUntilNextMidnight(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.sweepTrash(ctx)
			timer.Reset(24 * time.Hour)
		}
	}
}

// sweepTrash runs the retention sweep for every trash-enabled task.
// Failures are logged and non-fatal, per §4.6.
func (s *Scheduler) sweepTrash(ctx context.Context) {
	tasks, err := s.Store.ListTasks(ctx)
	if err != nil {
		s.Logger.Warn(ctx, "trash sweep: failed to list tasks", logging.Fields{"error": err.Error()})
		return
	}

	for _, task := range tasks {
		if !task.TrashEnabled {
			continue
		}

		password, err := s.Box.Decrypt(task.PasswordCT)
		if err != nil {
			s.Logger.Warn(ctx, "trash sweep: failed to decrypt password", logging.Fields{"task_id": task.ID})
			continue
		}
		ep := remote.Endpoint{Host: task.RemoteHost, Port: task.RemotePort, Username: task.Username, Password: password}
		password = ""

		cmd := trashSweepCommand(task.RemoteDir, s.Config.TrashRetentionDays)
		result := remote.SSH(ctx, ep, cmd, s.Config.SSHTrashCleanupTimeout)
		if !result.Success {
			s.Logger.Warn(ctx, "trash sweep failed for task", logging.Fields{"task_id": task.ID, "output": result.Output})
		}
	}
}

// durationUntilNextMidnight returns how long to wait from now until the
// next local midnight.
func durationUntilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}
