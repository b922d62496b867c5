package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/relaysync/relaysync/pkg/procrunner"
)

// rsyncArgs builds the argv for the primary transfer, per §4.5's
// "Primary transfer" contract. source is local_dir with a trailing
// slash so its contents replace remoteDir's contents.
func rsyncArgs(ep Endpoint, source, remoteDir string, versionEnabled bool, timestamp string) []string {
	remoteShell := fmt.Sprintf("ssh -p %d -o StrictHostKeyChecking=accept-new", ep.Port)

	args := []string{
		"-avz",
		"--delete",
		"--force",
		"--exclude=.versions",
		"--exclude=.trash",
		"--progress",
		"-e", remoteShell,
	}

	if versionEnabled {
		args = append(args, "--backup", fmt.Sprintf("--backup-dir=%s/.versions/%s", remoteDir, timestamp))
	}

	args = append(args, source, fmt.Sprintf("%s:%s", ep.userHost(), remoteDir))
	return args
}

// RunRsync invokes rsync for the primary transfer, wrapped in sshpass so
// the inner ssh's password prompt is satisfied non-interactively via
// SSHPASS. onProgress, if set, receives every raw stdout line so the
// orchestrator can extract progress percentages before the process exits.
func RunRsync(ctx context.Context, ep Endpoint, source, remoteDir string, versionEnabled bool, timestamp string, timeout time.Duration, onProgress func(line string)) *procrunner.Result {
	args := append([]string{"-e", "rsync"}, rsyncArgs(ep, source, remoteDir, versionEnabled, timestamp)...)

	return procrunner.Run(ctx, "sshpass", args, procrunner.Options{
		Env:      []string{"SSHPASS=" + ep.Password},
		Timeout:  timeout,
		OnOutput: onProgress,
	})
}

// RsyncExitMeansSuccess reports whether an rsync exit code should be
// treated as a successful run (0, or 24 for "some source files vanished").
func RsyncExitMeansSuccess(code int) bool {
	return code == 0 || code == 24
}

// sftpBatchScript builds the batch-mode command script for the fallback
// transfer: a non-deleting, non-versioning recursive put.
func sftpBatchScript(localDir, remoteDir string) string {
	return fmt.Sprintf("put -r %s/* %s/\n", localDir, remoteDir)
}

// RunSFTP invokes sftp in batch mode to push localDir's contents onto
// remoteDir, as the degraded fallback when rsync fails. This mode does
// not delete remote files nor version overwrites.
func RunSFTP(ctx context.Context, ep Endpoint, localDir, remoteDir, batchFilePath string, timeout time.Duration) *procrunner.Result {
	args := []string{
		"-e", "sftp",
		"-b", batchFilePath,
		"-P", fmt.Sprintf("%d", ep.Port),
		"-o", "StrictHostKeyChecking=accept-new",
		ep.userHost(),
	}

	return procrunner.Run(ctx, "sshpass", args, procrunner.Options{
		Env:     []string{"SSHPASS=" + ep.Password},
		Timeout: timeout,
	})
}

// SFTPBatchScript exposes the batch script contents so the orchestrator
// can write it to a temp file before invoking RunSFTP.
func SFTPBatchScript(localDir, remoteDir string) string {
	return sftpBatchScript(localDir, remoteDir)
}

// FallbackDegradationWarning is prepended to fallback output so callers
// can see at a glance that deletes and versioning were skipped.
const FallbackDegradationWarning = "WARNING: sftp fallback in use; remote deletions and file versioning were skipped for this run.\n"
