package sync

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/relaysync/relaysync/pkg/config"
	"github.com/relaysync/relaysync/pkg/events"
	"github.com/relaysync/relaysync/pkg/models"
	"github.com/relaysync/relaysync/pkg/secretbox"
	"github.com/relaysync/relaysync/pkg/store"
)

func TestProgressPatternMatchesRsyncOutput(t *testing.T) {
	tests := []struct {
		line       string
		wantMatch  bool
		wantPct    string
		wantSpeed  string
	}{
		{"     32768  42%    1.23MB/s    0:00:03", true, "42", "1.23MB/s"},
		{"          0   0%    0.00kB/s    0:00:00", true, "0", "0.00kB/s"},
		{"sending incremental file list", false, "", ""},
	}

	for _, tt := range tests {
		m := progressPattern.FindStringSubmatch(tt.line)
		if tt.wantMatch && m == nil {
			t.Errorf("progressPattern did not match %q", tt.line)
			continue
		}
		if !tt.wantMatch {
			if m != nil {
				t.Errorf("progressPattern unexpectedly matched %q", tt.line)
			}
			continue
		}
		if m[1] != tt.wantPct || m[2] != tt.wantSpeed {
			t.Errorf("progressPattern(%q) = (%s, %s), want (%s, %s)", tt.line, m[1], m[2], tt.wantPct, tt.wantSpeed)
		}
	}
}

func TestPrepareCommand(t *testing.T) {
	cmd := prepareCommand("/srv/backup")
	for _, want := range []string{"mkdir -p", "'/srv/backup'", "'/srv/backup/.versions'", "'/srv/backup/.trash'"} {
		if !strings.Contains(cmd, want) {
			t.Errorf("prepareCommand() = %q, want to contain %q", cmd, want)
		}
	}
}

func TestWriteBatchFile(t *testing.T) {
	path, err := writeBatchFile("put -r /local/* /remote/\n")
	if err != nil {
		t.Fatalf("writeBatchFile() error = %v", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "put -r /local/* /remote/\n" {
		t.Errorf("batch file content = %q, unexpected", string(data))
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store) {
	t.Helper()
	dir, err := os.MkdirTemp("", "orchestrator-test-*")
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

	cfg := &config.EngineConfig{
		SSHMkdirTimeout:          time.Second,
		SSHFindTimeout:           time.Second,
		SSHTrashMoveTimeout:      time.Second,
		SSHVersionCleanupTimeout: time.Second,
		RsyncTimeout:             time.Second,
		SFTPTimeout:              time.Second,
		MaxVersions:              10,
	}

	return New(s, box, events.New(), nil, cfg), s
}

func TestExecuteSyncRejectsUnknownTask(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result := o.ExecuteSync(context.Background(), 999)
	if result.Error != models.ErrNotFound {
		t.Errorf("ExecuteSync() error = %v, want ErrNotFound", result.Error)
	}
}

func TestExecuteSyncRejectsConcurrentRun(t *testing.T) {
	o, s := newTestOrchestrator(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, &models.Task{
		Name: "concurrent", RemoteHost: "example.com", RemotePort: 22, Username: "alice",
		LocalDir: "/tmp", RemoteDir: "/srv/backup", IntervalMinutes: 60,
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if err := s.AcquireLock(ctx, id); err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}

	result := o.ExecuteSync(ctx, id)
	if result.Error != models.ErrAlreadyRunning {
		t.Errorf("ExecuteSync() error = %v, want ErrAlreadyRunning", result.Error)
	}
}
