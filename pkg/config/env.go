package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig holds the operational tunables the engine reads from the
// process environment (§6 "Configuration (environment)"). All of them
// are overridable; defaults match the spec. SSHTimeout,
// DefaultCommandTimeout, MaxOutputBytes, VersionsDir and TrashDir are
// loaded but not read by the engine: each remote step uses its own
// timeout above, captured output is capped at
// procrunner.DefaultMaxOutputBytes, and the remote layout always uses
// the .versions and .trash directory names.
type EngineConfig struct {
	RsyncTimeout             time.Duration
	SFTPTimeout              time.Duration
	SSHTimeout               time.Duration
	SSHMkdirTimeout          time.Duration
	SSHFindTimeout           time.Duration
	SSHTrashMoveTimeout      time.Duration
	SSHVersionCleanupTimeout time.Duration
	SSHTrashCleanupTimeout   time.Duration
	SSHTestConnectionTimeout time.Duration
	DefaultCommandTimeout    time.Duration

	MaxLogs                int
	MaxVersions            int
	TrashRetentionDays     int
	MaxConsecutiveFailures int
	StaleTaskThreshold     time.Duration
	MaxOutputBytes         int64

	VersionsDir string
	TrashDir    string

	DataDir       string
	DBPath        string
	SecretKeyPath string
}

// LoadEngineConfig binds EngineConfig to the process environment via
// viper's AutomaticEnv, the way the teacher's pack-mate (beads) binds
// its CLI/daemon configuration. Every key also has a spec-mandated
// default so the engine runs unconfigured in a fresh environment.
func LoadEngineConfig() (*EngineConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("RSYNC_TIMEOUT", 3600)
	v.SetDefault("SFTP_TIMEOUT", 300)
	v.SetDefault("SSH_TIMEOUT", 30)
	v.SetDefault("SSH_MKDIR_TIMEOUT", 30)
	v.SetDefault("SSH_FIND_TIMEOUT", 60)
	v.SetDefault("SSH_TRASH_MOVE_TIMEOUT", 60)
	v.SetDefault("SSH_VERSION_CLEANUP_TIMEOUT", 60)
	v.SetDefault("SSH_TRASH_CLEANUP_TIMEOUT", 120)
	v.SetDefault("SSH_TEST_CONNECTION_TIMEOUT", 30)
	v.SetDefault("DEFAULT_COMMAND_TIMEOUT", 30)

	v.SetDefault("MAX_LOGS", 100)
	v.SetDefault("MAX_VERSIONS", 10)
	v.SetDefault("TRASH_RETENTION_DAYS", 90)
	v.SetDefault("MAX_CONSECUTIVE_FAILURES", 3)
	v.SetDefault("STALE_TASK_THRESHOLD", 86400)
	v.SetDefault("MAX_OUTPUT_SIZE", 10240)

	v.SetDefault("VERSIONS_DIR", ".versions")
	v.SetDefault("TRASH_DIR", ".trash")

	dataDir, err := defaultDataDir()
	if err != nil {
		return nil, err
	}
	v.SetDefault("DATA_DIR", dataDir)
	v.SetDefault("DB_PATH", filepath.Join(dataDir, "relaysync.db"))
	v.SetDefault("SECRET_KEY_PATH", filepath.Join(dataDir, "secret.key"))

	cfg := &EngineConfig{
		RsyncTimeout:             time.Duration(v.GetInt64("RSYNC_TIMEOUT")) * time.Second,
		SFTPTimeout:              time.Duration(v.GetInt64("SFTP_TIMEOUT")) * time.Second,
		SSHTimeout:               time.Duration(v.GetInt64("SSH_TIMEOUT")) * time.Second,
		SSHMkdirTimeout:          time.Duration(v.GetInt64("SSH_MKDIR_TIMEOUT")) * time.Second,
		SSHFindTimeout:           time.Duration(v.GetInt64("SSH_FIND_TIMEOUT")) * time.Second,
		SSHTrashMoveTimeout:      time.Duration(v.GetInt64("SSH_TRASH_MOVE_TIMEOUT")) * time.Second,
		SSHVersionCleanupTimeout: time.Duration(v.GetInt64("SSH_VERSION_CLEANUP_TIMEOUT")) * time.Second,
		SSHTrashCleanupTimeout:   time.Duration(v.GetInt64("SSH_TRASH_CLEANUP_TIMEOUT")) * time.Second,
		SSHTestConnectionTimeout: time.Duration(v.GetInt64("SSH_TEST_CONNECTION_TIMEOUT")) * time.Second,
		DefaultCommandTimeout:    time.Duration(v.GetInt64("DEFAULT_COMMAND_TIMEOUT")) * time.Second,

		MaxLogs:                v.GetInt("MAX_LOGS"),
		MaxVersions:            v.GetInt("MAX_VERSIONS"),
		TrashRetentionDays:     v.GetInt("TRASH_RETENTION_DAYS"),
		MaxConsecutiveFailures: v.GetInt("MAX_CONSECUTIVE_FAILURES"),
		StaleTaskThreshold:     time.Duration(v.GetInt64("STALE_TASK_THRESHOLD")) * time.Second,
		MaxOutputBytes:         v.GetInt64("MAX_OUTPUT_SIZE"),

		VersionsDir: v.GetString("VERSIONS_DIR"),
		TrashDir:    v.GetString("TRASH_DIR"),

		DataDir:       v.GetString("DATA_DIR"),
		DBPath:        v.GetString("DB_PATH"),
		SecretKeyPath: v.GetString("SECRET_KEY_PATH"),
	}

	if cfg.StaleTaskThreshold < cfg.RsyncTimeout {
		return nil, fmt.Errorf("STALE_TASK_THRESHOLD (%s) must not be shorter than RSYNC_TIMEOUT (%s)",
			cfg.StaleTaskThreshold, cfg.RsyncTimeout)
	}

	return cfg, nil
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "relaysync"), nil
}
