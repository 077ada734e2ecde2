package scripts

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotAllowed is returned for any script id that is not on the allowlist.
	ErrNotAllowed = errors.New("script is not allowlisted")
	// ErrUnknownScript is returned for an allowlisted id with no registered command.
	ErrUnknownScript = errors.New("unknown script")
)

const noStderr = "No stderr output."

// ExecutionError reports a script that failed to start, exited non-zero, timed
// out or was cancelled.
type ExecutionError struct {
	ScriptID ScriptID
	// ExitCode is -1 when the process never exited on its own.
	ExitCode int
	Stderr   string
	TimedOut bool
	Timeout  time.Duration
	Err      error
}

func (e *ExecutionError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("script %s timed out after %s", e.ScriptID, e.Timeout)
	case e.ExitCode < 0 && e.Err != nil:
		return fmt.Sprintf("script %s failed: %v", e.ScriptID, e.Err)
	}

	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		stderr = noStderr
	}
	return fmt.Sprintf("script failed with exit code %d. %s", e.ExitCode, stderr)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
