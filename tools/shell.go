package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/martinemde/autoagent/workspace"
)

// DefaultShellTimeout bounds a single executeShell command.
const DefaultShellTimeout = 2 * time.Minute

const shellDisabledReason = "You are not allowed to run local shell commands. To execute shell commands, EXECUTE_LOCAL_COMMANDS must be set to 'True' in your config. Do not attempt to bypass the restriction."

// ExecuteShell runs commandLine in the workspace root and reports both
// output streams.
func ExecuteShell(ctx context.Context, ws *workspace.Workspace, commandLine string, timeout time.Duration) (string, error) {
	res, err := ws.Exec(ctx, commandLine, timeout)
	if err != nil {
		return "", err
	}
	if res.TimedOut {
		return "", fmt.Errorf("command timed out after %s", timeout)
	}
	out := fmt.Sprintf("STDOUT:\n%s\nSTDERR:\n%s", res.Stdout, res.Stderr)
	if res.ExitCode != 0 {
		out += fmt.Sprintf("\nExit code: %d", res.ExitCode)
	}
	return out, nil
}
