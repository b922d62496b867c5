//go:build !windows

package procrunner

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child in its own process group so a timeout
// kill can take down everything it spawned, not just the direct child.
// os/exec requires the stdlib syscall.SysProcAttr type here; only the
// signal-sending side below uses x/sys/unix.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the negative pid, i.e. the whole
// process group started by setProcessGroup.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}
