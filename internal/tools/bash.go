package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// BashTool runs a shell command with a bounded timeout, grounded on the
// original implementation's tools/bash_executor.py. Long-running tools
// are bounded by their own timeout parameter (spec.md §4.5.1); the
// reasoning engine never applies a wall-clock to the loop itself.
type BashTool struct {
	DefaultTimeout time.Duration
}

// Name implements Tool.
func (BashTool) Name() string { return "run_bash_command" }

// Description implements Tool.
func (BashTool) Description() string {
	return "Runs a shell command. Params: {\"command\": string, \"timeout_seconds\"?: number}."
}

// Execute implements Tool.
func (b BashTool) Execute(ctx context.Context, params map[string]interface{}) (string, error) {
	command, ok := params["command"].(string)
	if !ok || command == "" {
		return "", fmt.Errorf("run_bash_command: missing required string parameter 'command'")
	}

	timeout := b.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if secs, ok := params["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() != nil {
		return "", fmt.Errorf("run_bash_command: timed out after %s", timeout)
	}
	if err != nil {
		return fmt.Sprintf("command failed: %s\nstdout: %s\nstderr: %s", err, stdout.String(), stderr.String()), nil
	}
	return stdout.String(), nil
}
