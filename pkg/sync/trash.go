package sync

import (
	"fmt"
	"path"
	"strings"

	"github.com/relaysync/relaysync/internal/platform"
)

// trashBatchSize is the number of mv commands joined into one remote
// command string, per §4.5 PreTrash step 4.
const trashBatchSize = 100

// remoteFindCommand lists every remote file under remoteDir except the
// .versions and .trash bookkeeping directories themselves.
func remoteFindCommand(remoteDir string) string {
	return fmt.Sprintf(
		`cd %s && find . -type f ! -path "./.versions/*" ! -path "./.trash/*" | sed 's|^./||'`,
		platform.ShellEscape(remoteDir),
	)
}

// computeExtras returns remote paths absent from the local set: files
// that existed on the remote mirror but no longer exist locally, which
// PreTrash must move aside before the primary transfer runs.
func computeExtras(localPaths, remotePaths []string) []string {
	local := make(map[string]struct{}, len(localPaths))
	for _, p := range localPaths {
		local[p] = struct{}{}
	}

	var extras []string
	for _, p := range remotePaths {
		if _, ok := local[p]; !ok {
			extras = append(extras, p)
		}
	}
	return extras
}

// parseRemoteFileList splits the newline-delimited output of
// remoteFindCommand into individual relative paths, dropping blanks.
func parseRemoteFileList(output string) []string {
	var paths []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths
}

// trashMoveCommand builds the mkdir+mv pair for one extra file, rooted
// at the given trash directory (<remote_dir>/.trash/<timestamp>).
func trashMoveCommand(remoteDir, trashDir, relPath string) string {
	dir := path.Dir(relPath)
	destDir := path.Join(trashDir, dir)
	src := path.Join(remoteDir, relPath)
	dest := path.Join(trashDir, relPath)
	return fmt.Sprintf("mkdir -p %s && mv %s %s",
		platform.ShellEscape(destDir), platform.ShellEscape(src), platform.ShellEscape(dest))
}

// trashBatches groups per-file mv commands into batches of trashBatchSize,
// each batch a single "&&"-joined remote command, per §4.5 step 4.
func trashBatches(remoteDir, trashDir string, extras []string) []string {
	var batches []string
	for i := 0; i < len(extras); i += trashBatchSize {
		end := i + trashBatchSize
		if end > len(extras) {
			end = len(extras)
		}
		var cmds []string
		for _, relPath := range extras[i:end] {
			cmds = append(cmds, trashMoveCommand(remoteDir, trashDir, relPath))
		}
		batches = append(batches, strings.Join(cmds, " && "))
	}
	return batches
}
