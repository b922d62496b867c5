// Package sync implements the Transfer Orchestrator: one run of
// executeSync per task, taking it through lock acquisition, remote
// preparation, trash pre-computation, primary transfer, fallback
// transfer, and version cleanup, per §4.5.
package sync

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/relaysync/relaysync/internal/platform"
	"github.com/relaysync/relaysync/pkg/config"
	"github.com/relaysync/relaysync/pkg/events"
	"github.com/relaysync/relaysync/pkg/logging"
	"github.com/relaysync/relaysync/pkg/models"
	"github.com/relaysync/relaysync/pkg/remote"
	"github.com/relaysync/relaysync/pkg/secretbox"
	"github.com/relaysync/relaysync/pkg/storage"
	"github.com/relaysync/relaysync/pkg/store"
)

// progressPattern matches rsync's progress lines, e.g. "  42%   1.23MB/s".
var progressPattern = regexp.MustCompile(`(\d{1,3})%\s+([0-9.]+\w+/s)`)

// Result is the outcome of one executeSync call.
type Result struct {
	Success  bool
	Output   string
	SyncMode models.SyncMode
	Error    error
}

// Orchestrator runs one sync for one task at a time, guarded by the
// Store's single-flight lock.
type Orchestrator struct {
	Store  *store.Store
	Box    *secretbox.Box
	Bus    *events.Bus
	Logger logging.Logger
	Config *config.EngineConfig
}

// New builds an Orchestrator over the given collaborators.
func New(s *store.Store, box *secretbox.Box, bus *events.Bus, logger logging.Logger, cfg *config.EngineConfig) *Orchestrator {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Orchestrator{Store: s, Box: box, Bus: bus, Logger: logger, Config: cfg}
}

// ExecuteSync runs the full state machine for one task: Locked →
// Preparing → PreTrash → PrimaryTransfer → {CleanupVersions|Fallback} →
// Done. recordRun and the task-update event always fire on the way out,
// even when an earlier stage failed.
func (o *Orchestrator) ExecuteSync(ctx context.Context, taskID int64) *Result {
	task, err := o.Store.GetTask(ctx, taskID)
	if err != nil {
		return &Result{Success: false, Error: err}
	}

	if err := o.Store.AcquireLock(ctx, taskID); err != nil {
		return &Result{Success: false, Error: err}
	}

	start := time.Now()
	result := o.runLocked(ctx, task)
	duration := time.Since(start).Seconds()

	status := models.StatusSuccess
	if !result.Success {
		status = models.StatusFail
	}
	if err := o.Store.RecordRun(ctx, taskID, status, result.Output, duration, result.SyncMode); err != nil {
		o.Logger.Error(ctx, "failed to record run", err, logging.Fields{"task_id": taskID})
	}
	o.Bus.PublishUpdate()

	return result
}

// runLocked performs every stage after the lock is held. The caller is
// responsible for recordRun and the task-update event regardless of what
// this returns.
func (o *Orchestrator) runLocked(ctx context.Context, task *models.Task) *Result {
	password, err := o.Box.Decrypt(task.PasswordCT)
	if err != nil {
		return &Result{Success: false, SyncMode: models.ModeRsync, Error: fmt.Errorf("%w: %v", models.ErrSecretBox, err)}
	}
	defer func() { password = "" }()

	ep := remote.Endpoint{
		Host:     task.RemoteHost,
		Port:     task.RemotePort,
		Username: task.Username,
		Password: password,
	}

	if out, err := o.prepareRemote(ctx, ep, task.RemoteDir); err != nil {
		return &Result{Success: false, Output: out, SyncMode: models.ModeRsync, Error: err}
	}

	timestamp := newTimestamp(time.Now())

	if task.TrashEnabled {
		if out, err := o.preTrash(ctx, ep, task, timestamp); err != nil {
			return &Result{Success: false, Output: out, SyncMode: models.ModeRsync, Error: err}
		}
	}

	return o.transfer(ctx, ep, task, timestamp)
}

// prepareCommand builds the mkdir -p for remote_dir, .versions, and
// .trash, per §4.5 "Preparation".
func prepareCommand(remoteDir string) string {
	return fmt.Sprintf("mkdir -p %s %s %s",
		platform.ShellEscape(remoteDir),
		platform.ShellEscape(remoteDir+"/.versions"),
		platform.ShellEscape(remoteDir+"/.trash"),
	)
}

// prepareRemote issues the mkdir -p for remote_dir, .versions, and .trash.
func (o *Orchestrator) prepareRemote(ctx context.Context, ep remote.Endpoint, remoteDir string) (string, error) {
	result := remote.SSH(ctx, ep, prepareCommand(remoteDir), o.Config.SSHMkdirTimeout)
	if !result.Success {
		return result.Output, fmt.Errorf("%w: %s", models.ErrRemotePrepFailed, result.Output)
	}
	return result.Output, nil
}

// preTrash enumerates local and remote files and moves aside anything
// present remotely but absent locally, per §4.5 "PreTrash". timestamp
// is the run's single timestamp, shared with the .versions backup dir
// so both land under the same <ts> within one run.
func (o *Orchestrator) preTrash(ctx context.Context, ep remote.Endpoint, task *models.Task, timestamp string) (string, error) {
	local, err := storage.NewLocal(task.LocalDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrPreTrashFailed, err)
	}

	entries, err := local.List(ctx, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrPreTrashFailed, err)
	}

	var localPaths []string
	for _, e := range entries {
		if !e.IsDir {
			localPaths = append(localPaths, e.RelativePath)
		}
	}

	findResult := remote.SSH(ctx, ep, remoteFindCommand(task.RemoteDir), o.Config.SSHFindTimeout)
	if !findResult.Success {
		return findResult.Output, fmt.Errorf("%w: %s", models.ErrPreTrashFailed, findResult.Output)
	}
	remotePaths := parseRemoteFileList(findResult.Stdout)

	extras := computeExtras(localPaths, remotePaths)
	if len(extras) == 0 {
		return "", nil
	}

	trashDir := task.RemoteDir + "/.trash/" + timestamp
	var combined string
	for _, batch := range trashBatches(task.RemoteDir, trashDir, extras) {
		result := remote.SSH(ctx, ep, batch, o.Config.SSHTrashMoveTimeout)
		combined += result.Output
		if !result.Success {
			return combined, fmt.Errorf("%w: %s", models.ErrPreTrashFailed, result.Output)
		}
	}
	return combined, nil
}

// transfer runs the primary rsync transfer, falling back to sftp on
// failure, then cleaning up old version directories on success.
func (o *Orchestrator) transfer(ctx context.Context, ep remote.Endpoint, task *models.Task, timestamp string) *Result {
	source := platform.ToRemoteSlash(task.LocalDir)
	if source[len(source)-1] != '/' {
		source += "/"
	}

	onProgress := func(line string) {
		m := progressPattern.FindStringSubmatch(line)
		if m == nil {
			return
		}
		percent, err := strconv.Atoi(m[1])
		if err != nil {
			return
		}
		o.Bus.PublishProgress(events.Progress{TaskID: task.ID, Percent: percent, Speed: m[2]})
	}

	primary := remote.RunRsync(ctx, ep, source, task.RemoteDir, task.VersionEnabled, timestamp, o.Config.RsyncTimeout, onProgress)

	if remote.RsyncExitMeansSuccess(primary.Code) {
		if task.VersionEnabled {
			o.cleanupVersions(ctx, ep, task.RemoteDir)
		}
		return &Result{Success: true, Output: primary.Output, SyncMode: models.ModeRsync}
	}

	primaryOutput := primary.Output
	if primary.Killed {
		primaryOutput += "\n[TIMEOUT]"
	}
	return o.fallback(ctx, ep, task, primaryOutput)
}

// fallback invokes sftp in batch mode after rsync fails, per §4.5
// "Fallback". This path never deletes remote files or writes versions.
func (o *Orchestrator) fallback(ctx context.Context, ep remote.Endpoint, task *models.Task, primaryOutput string) *Result {
	batchFile, err := writeBatchFile(remote.SFTPBatchScript(platform.ToRemoteSlash(task.LocalDir), task.RemoteDir))
	if err != nil {
		return &Result{
			Success:  false,
			Output:   primaryOutput,
			SyncMode: models.ModeRsync,
			Error:    fmt.Errorf("%w: %v", models.ErrFallbackFailed, err),
		}
	}
	defer os.Remove(batchFile)

	fb := remote.RunSFTP(ctx, ep, task.LocalDir, task.RemoteDir, batchFile, o.Config.SFTPTimeout)
	output := remote.FallbackDegradationWarning + primaryOutput + "\n" + fb.Output

	if !fb.Success {
		return &Result{
			Success:  false,
			Output:   output,
			SyncMode: models.ModeSFTP,
			Error:    fmt.Errorf("%w: %s", models.ErrFallbackFailed, fb.Output),
		}
	}
	return &Result{Success: true, Output: output, SyncMode: models.ModeSFTP}
}

// cleanupVersions trims .versions directories beyond Config.MaxVersions.
// Failure is logged and never flips the run's status, per §4.5.
func (o *Orchestrator) cleanupVersions(ctx context.Context, ep remote.Endpoint, remoteDir string) {
	cmd := versionCleanupCommand(remoteDir, o.Config.MaxVersions)
	result := remote.SSH(ctx, ep, cmd, o.Config.SSHVersionCleanupTimeout)
	if !result.Success {
		o.Logger.Warn(ctx, "version cleanup failed", logging.Fields{"remote_dir": remoteDir, "output": result.Output})
	}
}

// writeBatchFile persists an sftp batch script to a temp file, since
// sftp -b reads its command script from a path, not stdin.
func writeBatchFile(script string) (string, error) {
	f, err := os.CreateTemp("", "relaysync-sftp-batch-*.txt")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(script); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
