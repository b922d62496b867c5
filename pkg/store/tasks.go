package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/relaysync/relaysync/pkg/models"
)

// CreateTask inserts a new task and returns its assigned id.
func (s *Store) CreateTask(ctx context.Context, t *models.Task) (int64, error) {
	now := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO tasks (
			name, enabled, remote_host, remote_port, username, password_ct,
			local_dir, remote_dir, interval_minutes, version_enabled, trash_enabled,
			is_running, consecutive_failures, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
	`,
		t.Name, boolToInt(t.Enabled), t.RemoteHost, t.RemotePort, t.Username, t.PasswordCT,
		t.LocalDir, t.RemoteDir, t.IntervalMinutes, boolToInt(t.VersionEnabled), boolToInt(t.TrashEnabled),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create task: %w", err)
	}
	return res.LastInsertId()
}

// GetTask fetches one task by id. Returns models.ErrNotFound if absent.
func (s *Store) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	row := s.conn.QueryRowContext(ctx, taskSelectColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return task, nil
}

// ListTasks returns all tasks ordered by id.
func (s *Store) ListTasks(ctx context.Context) ([]*models.Task, error) {
	rows, err := s.conn.QueryContext(ctx, taskSelectColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ListEnabledTasks returns tasks with enabled=1, for scheduler bootstrap.
func (s *Store) ListEnabledTasks(ctx context.Context) ([]*models.Task, error) {
	rows, err := s.conn.QueryContext(ctx, taskSelectColumns+` FROM tasks WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTask overwrites the mutable task fields. PasswordCT is left
// untouched if empty, so callers can update a task without re-supplying
// an unchanged password.
func (s *Store) UpdateTask(ctx context.Context, t *models.Task) error {
	now := time.Now().UTC()

	var err error
	if t.PasswordCT != "" {
		_, err = s.conn.ExecContext(ctx, `
			UPDATE tasks SET
				name = ?, enabled = ?, remote_host = ?, remote_port = ?, username = ?, password_ct = ?,
				local_dir = ?, remote_dir = ?, interval_minutes = ?,
				version_enabled = ?, trash_enabled = ?, updated_at = ?
			WHERE id = ?
		`,
			t.Name, boolToInt(t.Enabled), t.RemoteHost, t.RemotePort, t.Username, t.PasswordCT,
			t.LocalDir, t.RemoteDir, t.IntervalMinutes,
			boolToInt(t.VersionEnabled), boolToInt(t.TrashEnabled), now.Unix(),
			t.ID,
		)
	} else {
		_, err = s.conn.ExecContext(ctx, `
			UPDATE tasks SET
				name = ?, enabled = ?, remote_host = ?, remote_port = ?, username = ?,
				local_dir = ?, remote_dir = ?, interval_minutes = ?,
				version_enabled = ?, trash_enabled = ?, updated_at = ?
			WHERE id = ?
		`,
			t.Name, boolToInt(t.Enabled), t.RemoteHost, t.RemotePort, t.Username,
			t.LocalDir, t.RemoteDir, t.IntervalMinutes,
			boolToInt(t.VersionEnabled), boolToInt(t.TrashEnabled), now.Unix(),
			t.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID, err)
	}
	return nil
}

// DeleteTask removes a task; its logs cascade via the foreign key.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	return nil
}

// SetEnabled toggles a task's enabled flag. Per §6, toggling also resets
// consecutive_failures so a re-enabled task gets a clean failure budget.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE tasks SET enabled = ?, consecutive_failures = 0, updated_at = ?
		WHERE id = ?
	`, boolToInt(enabled), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set enabled for task %d: %w", id, err)
	}
	return nil
}

const taskSelectColumns = `
	SELECT id, name, enabled, remote_host, remote_port, username, password_ct,
		local_dir, remote_dir, interval_minutes, version_enabled, trash_enabled,
		is_running, started_at, consecutive_failures, last_sync_time, last_sync_status,
		created_at, updated_at
`

// rowScanner abstracts over *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var enabled, versionEnabled, trashEnabled, isRunning int
	var startedAt, lastSyncTime sql.NullInt64
	var lastSyncStatus sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&t.ID, &t.Name, &enabled, &t.RemoteHost, &t.RemotePort, &t.Username, &t.PasswordCT,
		&t.LocalDir, &t.RemoteDir, &t.IntervalMinutes, &versionEnabled, &trashEnabled,
		&isRunning, &startedAt, &t.ConsecutiveFailures, &lastSyncTime, &lastSyncStatus,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Enabled = enabled != 0
	t.VersionEnabled = versionEnabled != 0
	t.TrashEnabled = trashEnabled != 0
	t.IsRunning = isRunning != 0
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	if startedAt.Valid {
		ts := time.Unix(startedAt.Int64, 0).UTC()
		t.StartedAt = &ts
	}
	if lastSyncTime.Valid {
		ts := time.Unix(lastSyncTime.Int64, 0).UTC()
		t.LastSyncTime = &ts
	}
	if lastSyncStatus.Valid {
		t.LastSyncStatus = models.SyncStatus(lastSyncStatus.String)
	}

	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
