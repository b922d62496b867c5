// Package remote executes shell commands on a remote host over
// password-authenticated SSH, routing every invocation through the
// procrunner so timeouts and output capture are uniform across rsync,
// sftp, and plain ssh calls.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/relaysync/relaysync/pkg/procrunner"
)

// Endpoint identifies the SSH target for one task.
type Endpoint struct {
	Host     string
	Port     int
	Username string
	Password string
}

// userHost renders "user@host" for argv composition.
func (e Endpoint) userHost() string {
	return fmt.Sprintf("%s@%s", e.Username, e.Host)
}

// SSH runs remoteCommand on the endpoint's remote shell and returns the
// process outcome. remoteCommand is passed verbatim as one argv element;
// the caller is responsible for shell-escaping any interpolated values
// before composing it (see internal/platform.ShellEscape).
func SSH(ctx context.Context, ep Endpoint, remoteCommand string, timeout time.Duration) *procrunner.Result {
	args := []string{
		"-e", "ssh",
		"-p", fmt.Sprintf("%d", ep.Port),
		"-o", "StrictHostKeyChecking=accept-new",
		ep.userHost(),
		remoteCommand,
	}

	return procrunner.Run(ctx, "sshpass", args, procrunner.Options{
		Env:     []string{"SSHPASS=" + ep.Password},
		Timeout: timeout,
	})
}

// TestConnection issues a trivial remote echo to validate credentials
// and reachability, per the management surface's testConnection op.
func TestConnection(ctx context.Context, ep Endpoint, timeout time.Duration) (bool, string) {
	result := SSH(ctx, ep, "echo connected", timeout)
	if !result.Success {
		return false, connectionError(result)
	}
	return true, ""
}

func connectionError(result *procrunner.Result) string {
	if result.Killed {
		return "connection timed out"
	}
	if result.Stderr != "" {
		return result.Stderr
	}
	return result.Output
}
