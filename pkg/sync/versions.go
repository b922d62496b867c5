package sync

import (
	"fmt"

	"github.com/relaysync/relaysync/internal/platform"
)

// versionCleanupCommand removes all but the newest maxVersions
// directories under <remote_dir>/.versions, per §4.5 "Version cleanup".
func versionCleanupCommand(remoteDir string, maxVersions int) string {
	versionsDir := remoteDir + "/.versions"
	return fmt.Sprintf(
		`cd %s && ls -td */ | tail -n +%d | while read d; do rm -rf "$d"; done`,
		platform.ShellEscape(versionsDir), maxVersions+1,
	)
}

// trashSweepCommand removes trash directories older than retentionDays,
// per §4.6 "Daily trash sweep".
func trashSweepCommand(remoteDir string, retentionDays int) string {
	trashDir := remoteDir + "/.trash"
	return fmt.Sprintf(
		`find %s -mindepth 1 -maxdepth 1 -type d -mtime +%d -exec rm -rf {} \;`,
		platform.ShellEscape(trashDir), retentionDays,
	)
}
