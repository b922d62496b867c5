package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/relaysync/relaysync/pkg/models"
)

// lockRetries is the number of attempts acquireLock makes when it hits
// transient SQLite write contention before giving up.
const lockRetries = 5

// AcquireLock implements the §4.1 single-flight lock protocol: inside a
// serializable transaction, a running-but-stale lock is cleared first,
// then the lock is taken only if is_running is currently 0. Returns
// models.ErrAlreadyRunning if another run genuinely holds the lock.
func (s *Store) AcquireLock(ctx context.Context, taskID int64) error {
	var lastErr error
	for attempt := 1; attempt <= lockRetries; attempt++ {
		err := s.tryAcquireLock(ctx, taskID)
		if err == nil || err == models.ErrAlreadyRunning || err == models.ErrNotFound {
			return err
		}
		lastErr = err
		if !isTransientBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return fmt.Errorf("failed to acquire lock for task %d after %d attempts: %w", taskID, lockRetries, lastErr)
}

func (s *Store) tryAcquireLock(ctx context.Context, taskID int64) error {
	tx, err := s.conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var isRunning int
	var startedAt sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT is_running, started_at FROM tasks WHERE id = ?`, taskID).Scan(&isRunning, &startedAt)
	if err == sql.ErrNoRows {
		return models.ErrNotFound
	}
	if err != nil {
		return err
	}

	if isRunning != 0 {
		stale := startedAt.Valid && time.Since(time.Unix(startedAt.Int64, 0)) > s.StaleThreshold
		if !stale {
			return models.ErrAlreadyRunning
		}
	}

	now := time.Now().UTC().Unix()
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET is_running = 1, started_at = ? WHERE id = ?`, now, taskID); err != nil {
		return err
	}

	return tx.Commit()
}

// ReleaseStaleLock force-clears a stale lock without recording a run,
// used by the Scheduler per §4.6 step 2 when it finds is_running=1 older
// than StaleThreshold on its own tick (outside of a fresh acquire).
func (s *Store) ReleaseStaleLock(ctx context.Context, taskID int64) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE tasks SET is_running = 0, started_at = NULL WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to release stale lock for task %d: %w", taskID, err)
	}
	return nil
}

func isTransientBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}
