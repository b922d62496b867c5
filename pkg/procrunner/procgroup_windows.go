//go:build windows

package procrunner

import "os/exec"

// setProcessGroup is a no-op on Windows; job objects would be needed for
// true group-kill semantics, which this engine does not target.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the direct child only.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	cmd.Process.Kill()
}
