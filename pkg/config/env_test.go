package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadEngineConfigDefaults(t *testing.T) {
	cfg, err := LoadEngineConfig()
	if err != nil {
		t.Fatalf("LoadEngineConfig() error = %v", err)
	}

	if cfg.RsyncTimeout != time.Hour {
		t.Errorf("RsyncTimeout = %v, want 1h", cfg.RsyncTimeout)
	}
	if cfg.MaxLogs != 100 {
		t.Errorf("MaxLogs = %d, want 100", cfg.MaxLogs)
	}
	if cfg.MaxVersions != 10 {
		t.Errorf("MaxVersions = %d, want 10", cfg.MaxVersions)
	}
	if cfg.TrashRetentionDays != 90 {
		t.Errorf("TrashRetentionDays = %d, want 90", cfg.TrashRetentionDays)
	}
	if cfg.StaleTaskThreshold != 24*time.Hour {
		t.Errorf("StaleTaskThreshold = %v, want 24h", cfg.StaleTaskThreshold)
	}
	if cfg.DBPath == "" || cfg.SecretKeyPath == "" {
		t.Error("DBPath and SecretKeyPath should have non-empty defaults")
	}
}

func TestLoadEngineConfigRejectsStaleThresholdShorterThanRsyncTimeout(t *testing.T) {
	os.Setenv("STALE_TASK_THRESHOLD", "10")
	os.Setenv("RSYNC_TIMEOUT", "3600")
	defer os.Unsetenv("STALE_TASK_THRESHOLD")
	defer os.Unsetenv("RSYNC_TIMEOUT")

	if _, err := LoadEngineConfig(); err == nil {
		t.Error("LoadEngineConfig() should reject a stale threshold shorter than the rsync timeout")
	}
}

func TestLoadEngineConfigHonorsEnvOverride(t *testing.T) {
	os.Setenv("MAX_LOGS", "25")
	defer os.Unsetenv("MAX_LOGS")

	cfg, err := LoadEngineConfig()
	if err != nil {
		t.Fatalf("LoadEngineConfig() error = %v", err)
	}
	if cfg.MaxLogs != 25 {
		t.Errorf("MaxLogs = %d, want 25 from MAX_LOGS override", cfg.MaxLogs)
	}
}
