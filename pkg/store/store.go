// Package store persists Task and Log rows in an embedded SQLite
// database, and implements the single-flight lock protocol the
// Transfer Orchestrator relies on to guarantee at-most-one run per
// task at a time.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/relaysync/relaysync/pkg/secretbox"
)

// Store wraps the database connection and the tunables that shape
// retention and lock behavior.
type Store struct {
	conn *sql.DB

	MaxLogs                int
	StaleThreshold         time.Duration
	MaxConsecutiveFailures int
}

// Open creates a database connection at path in embedded WAL mode and
// ensures its schema exists. The caller must call Close when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(1) // single-writer SQLite; avoid SQLITE_BUSY storms
	conn.SetConnMaxLifetime(5 * time.Minute)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	s := &Store{
		conn:                   conn,
		MaxLogs:                100,
		StaleThreshold:         24 * time.Hour,
		MaxConsecutiveFailures: 3,
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to checkpoint WAL: %v\n", err)
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,

	remote_host TEXT NOT NULL,
	remote_port INTEGER NOT NULL DEFAULT 22,
	username TEXT NOT NULL,
	password_ct TEXT NOT NULL DEFAULT '',

	local_dir TEXT NOT NULL,
	remote_dir TEXT NOT NULL,
	interval_minutes INTEGER NOT NULL,

	version_enabled INTEGER NOT NULL DEFAULT 0,
	trash_enabled INTEGER NOT NULL DEFAULT 0,

	is_running INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER,

	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	last_sync_time INTEGER,
	last_sync_status TEXT,

	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	timestamp INTEGER NOT NULL,
	status TEXT NOT NULL,
	output TEXT NOT NULL DEFAULT '',
	duration_s REAL NOT NULL DEFAULT 0,
	sync_mode TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_logs_task_id ON logs(task_id);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp DESC);
`

// initSchema is idempotent: safe to run against a fresh or existing
// database. Column additions to an already-deployed schema are handled
// by migrate, which runs once the CREATE statements have succeeded.
func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s.migrate(ctx)
}

// addedColumns lists forward-only ALTER TABLE statements applied to
// databases created by an older version of this schema. Each is
// attempted independently; "duplicate column" failures are expected
// and ignored so this stays idempotent across repeated startups.
var addedColumns = []string{}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range addedColumns {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			// SQLite reports "duplicate column name" once the column exists;
			// any other failure here would also fail on the next startup,
			// so it is safe to fall through rather than treat it as fatal.
			continue
		}
	}
	return nil
}

// MigratePlaintextPasswords re-encrypts any password_ct value that does
// not look like a Secret Box ciphertext, per the second migration named
// in the persistent state layout contract.
func (s *Store) MigratePlaintextPasswords(ctx context.Context, box *secretbox.Box) error {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, password_ct FROM tasks WHERE password_ct != ''`)
	if err != nil {
		return fmt.Errorf("failed to scan tasks for plaintext passwords: %w", err)
	}

	type pending struct {
		id    int64
		value string
	}
	var toMigrate []pending
	for rows.Next() {
		var id int64
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			rows.Close()
			return fmt.Errorf("failed to read task row: %w", err)
		}
		if !secretbox.LooksEncrypted(value) {
			toMigrate = append(toMigrate, pending{id: id, value: value})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, p := range toMigrate {
		ct, err := box.Encrypt(p.value)
		if err != nil {
			return fmt.Errorf("failed to encrypt plaintext password for task %d: %w", p.id, err)
		}
		if _, err := s.conn.ExecContext(ctx, `UPDATE tasks SET password_ct = ? WHERE id = ?`, ct, p.id); err != nil {
			return fmt.Errorf("failed to persist migrated password for task %d: %w", p.id, err)
		}
	}

	return nil
}
