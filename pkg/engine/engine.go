// Package engine wires the Store, Secret Box, Event Bus, Transfer
// Orchestrator and Task Scheduler into the single in-process object the
// management surface (§6) operates on. cmd/relaysyncd and cmd/relaysync
// both construct one Engine and differ only in what they do with it:
// the daemon starts the Scheduler and blocks, the CLI calls its
// operations directly and exits.
package engine

import (
	"context"
	"fmt"

	"github.com/relaysync/relaysync/pkg/config"
	"github.com/relaysync/relaysync/pkg/events"
	"github.com/relaysync/relaysync/pkg/logging"
	"github.com/relaysync/relaysync/pkg/models"
	"github.com/relaysync/relaysync/pkg/remote"
	"github.com/relaysync/relaysync/pkg/secretbox"
	"github.com/relaysync/relaysync/pkg/store"
	"github.com/relaysync/relaysync/pkg/sync"
)

// Engine is the process-wide singleton the teacher's design note (§9)
// calls for: one value built at startup, threaded through the CLI or
// held by the daemon, carrying the DB handle, the encryption key, and
// the Event Bus.
type Engine struct {
	Store        *store.Store
	Box          *secretbox.Box
	Bus          *events.Bus
	Orchestrator *sync.Orchestrator
	Scheduler    *sync.Scheduler
	Config       *config.EngineConfig
	Logger       logging.Logger
}

// New wires an Engine over an already-opened Store. The Orchestrator
// and Scheduler are connected through sync.ExecuteFunc, per §9's note
// to invert the dependency rather than have the Scheduler hold an
// Orchestrator pointer directly.
func New(s *store.Store, box *secretbox.Box, cfg *config.EngineConfig, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	if cfg.MaxLogs > 0 {
		s.MaxLogs = cfg.MaxLogs
	}
	if cfg.StaleTaskThreshold > 0 {
		s.StaleThreshold = cfg.StaleTaskThreshold
	}
	if cfg.MaxConsecutiveFailures > 0 {
		s.MaxConsecutiveFailures = cfg.MaxConsecutiveFailures
	}

	bus := events.New()
	orchestrator := sync.New(s, box, bus, logger, cfg)

	e := &Engine{
		Store:        s,
		Box:          box,
		Bus:          bus,
		Orchestrator: orchestrator,
		Config:       cfg,
		Logger:       logger,
	}
	e.Scheduler = sync.NewScheduler(s, bus, box, logger, cfg, orchestrator.ExecuteSync)
	return e
}

// Start loads enabled tasks into the Scheduler and begins the daily
// trash sweep. Call once, from the daemon entrypoint.
func (e *Engine) Start(ctx context.Context) error {
	return e.Scheduler.Init(ctx)
}

// Shutdown stops every scheduler timer and closes the store. A scheduled
// sync still in flight has its context cancelled and Shutdown waits for
// it to return; such a run cannot record its result, so the store's lock
// protocol leaves its row marked is_running until the next stale-lock
// sweep notices it.
func (e *Engine) Shutdown() error {
	e.Scheduler.Shutdown()
	return e.Store.Close()
}

// ListTasks returns every task with its password ciphertext stripped.
func (e *Engine) ListTasks(ctx context.Context) ([]*models.Task, error) {
	tasks, err := e.Store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	redacted := make([]*models.Task, len(tasks))
	for i, t := range tasks {
		redacted[i] = t.Redacted()
	}
	return redacted, nil
}

// GetTask returns one task with its password ciphertext stripped.
func (e *Engine) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	t, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Redacted(), nil
}

// CreateTask validates and persists a new task. password is the
// plaintext credential, encrypted here before anything reaches the
// store; an empty password stores an empty password_ct (no auth).
func (e *Engine) CreateTask(ctx context.Context, t *models.Task, password string) (*models.Task, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputInvalid, err)
	}

	ct, err := e.Box.Encrypt(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSecretBox, err)
	}
	t.PasswordCT = ct

	id, err := e.Store.CreateTask(ctx, t)
	if err != nil {
		return nil, err
	}

	created, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if created.Enabled {
		e.Scheduler.StartTask(created.ID, created.IntervalMinutes)
	}
	return created.Redacted(), nil
}

// UpdateTask validates and overwrites a task's mutable fields. An
// empty password leaves the stored credential untouched, so callers
// can update other fields without re-supplying it.
func (e *Engine) UpdateTask(ctx context.Context, t *models.Task, password string) (*models.Task, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputInvalid, err)
	}

	if password != "" {
		ct, err := e.Box.Encrypt(password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrSecretBox, err)
		}
		t.PasswordCT = ct
	}

	if err := e.Store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}

	updated, err := e.Store.GetTask(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	e.Scheduler.RestartTask(ctx, updated.ID)
	return updated.Redacted(), nil
}

// DeleteTask stops the task's scheduler timer and removes it, cascading
// its logs.
func (e *Engine) DeleteTask(ctx context.Context, id int64) error {
	e.Scheduler.StopTask(id)
	return e.Store.DeleteTask(ctx, id)
}

// ToggleTask flips a task's enabled flag and starts or stops its
// scheduler timer to match.
func (e *Engine) ToggleTask(ctx context.Context, id int64, enabled bool) (*models.Task, error) {
	if err := e.Store.SetEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}

	t, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if enabled {
		e.Scheduler.StartTask(t.ID, t.IntervalMinutes)
	} else {
		e.Scheduler.StopTask(t.ID)
	}
	return t.Redacted(), nil
}

// SyncTask triggers an immediate run for a task outside its normal
// schedule, via the same Orchestrator path the Scheduler uses, and
// returns the log row it produced. ErrNotFound and ErrAlreadyRunning
// are returned directly since those paths never reach recordRun.
func (e *Engine) SyncTask(ctx context.Context, id int64) (*models.Log, error) {
	result := e.Orchestrator.ExecuteSync(ctx, id)
	if result.Error != nil && (result.Error == models.ErrNotFound || result.Error == models.ErrAlreadyRunning) {
		return nil, result.Error
	}

	logs, err := e.Store.GetLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, fmt.Errorf("sync for task %d produced no log row", id)
	}
	return logs[0], nil
}

// GetLogs returns a task's run history, newest first.
func (e *Engine) GetLogs(ctx context.Context, id int64) ([]*models.Log, error) {
	if _, err := e.Store.GetTask(ctx, id); err != nil {
		return nil, err
	}
	return e.Store.GetLogs(ctx, id)
}

// TestConnection decrypts the task's stored credential and issues a
// trivial remote command to validate reachability, without touching
// any local or remote files.
func (e *Engine) TestConnection(ctx context.Context, id int64) (bool, string, error) {
	t, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return false, "", err
	}

	password, err := e.Box.Decrypt(t.PasswordCT)
	if err != nil {
		return false, "", fmt.Errorf("%w: %v", models.ErrSecretBox, err)
	}

	ep := remote.Endpoint{Host: t.RemoteHost, Port: t.RemotePort, Username: t.Username, Password: password}
	ok, output := remote.TestConnection(ctx, ep, e.Config.SSHTestConnectionTimeout)
	return ok, output, nil
}
