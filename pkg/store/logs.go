package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/relaysync/relaysync/pkg/models"
)

// RecordRun appends a log row, trims old logs beyond MaxLogs, releases
// the run lock, updates the task's failure counter and last-run fields,
// and auto-disables the task if consecutive_failures reaches
// MaxConsecutiveFailures on a failing run — all in one transaction, per
// §4.1/I3/I4.
func (s *Store) RecordRun(ctx context.Context, taskID int64, status models.SyncStatus, output string, durationS float64, mode models.SyncMode) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin recordRun transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO logs (task_id, timestamp, status, output, duration_s, sync_mode)
		VALUES (?, ?, ?, ?, ?, ?)
	`, taskID, now.Unix(), string(status), output, durationS, string(mode)); err != nil {
		return fmt.Errorf("failed to insert log row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM logs WHERE task_id = ? AND id NOT IN (
			SELECT id FROM logs WHERE task_id = ? ORDER BY timestamp DESC LIMIT ?
		)
	`, taskID, taskID, s.MaxLogs); err != nil {
		return fmt.Errorf("failed to trim logs: %w", err)
	}

	var consecutiveFailures int
	if err := tx.QueryRowContext(ctx, `SELECT consecutive_failures FROM tasks WHERE id = ?`, taskID).Scan(&consecutiveFailures); err != nil {
		if err == sql.ErrNoRows {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to read consecutive_failures: %w", err)
	}

	var disable bool
	if status == models.StatusSuccess {
		consecutiveFailures = 0
	} else {
		consecutiveFailures++
		disable = consecutiveFailures >= s.MaxConsecutiveFailures
	}

	if disable {
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET
				is_running = 0, started_at = NULL,
				consecutive_failures = ?, last_sync_time = ?, last_sync_status = ?,
				enabled = 0, updated_at = ?
			WHERE id = ?
		`, consecutiveFailures, now.Unix(), string(status), now.Unix(), taskID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET
				is_running = 0, started_at = NULL,
				consecutive_failures = ?, last_sync_time = ?, last_sync_status = ?,
				updated_at = ?
			WHERE id = ?
		`, consecutiveFailures, now.Unix(), string(status), now.Unix(), taskID)
	}
	if err != nil {
		return fmt.Errorf("failed to finalize task state: %w", err)
	}

	return tx.Commit()
}

// GetLogs returns up to MaxLogs most recent log rows for a task, newest first.
func (s *Store) GetLogs(ctx context.Context, taskID int64) ([]*models.Log, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, task_id, timestamp, status, output, duration_s, sync_mode
		FROM logs WHERE task_id = ? ORDER BY timestamp DESC LIMIT ?
	`, taskID, s.MaxLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var logs []*models.Log
	for rows.Next() {
		var l models.Log
		var ts int64
		var status, mode string
		if err := rows.Scan(&l.ID, &l.TaskID, &ts, &status, &l.Output, &l.DurationS, &mode); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		l.Timestamp = time.Unix(ts, 0).UTC()
		l.Status = models.SyncStatus(status)
		l.SyncMode = models.SyncMode(mode)
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
