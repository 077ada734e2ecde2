//go:build windows

package scripts

import (
	"os"
	"os/exec"
)

// Windows has no Setpgid; only the direct child is killed on cancellation.
func isolateProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Kill)
	}
}
