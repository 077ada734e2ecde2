//go:build !windows

package scripts

import (
	"os/exec"
	"syscall"
)

// isolateProcessGroup starts the child in its own process group so that
// cancellation kills the script and anything it spawned.
func isolateProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
