// ABOUTME: Per-task execution of the inventory script on a single agent
// ABOUTME: Classifies transport errors, remote failures, and malformed output into failed results

package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389/tendril-collect/internal/controlplane"
)

// ScriptRunner is the slice of the control-plane client the executor needs.
type ScriptRunner interface {
	Execute(ctx context.Context, hostname, script string) (*controlplane.ExecuteResponse, error)
}

// Executor produces one payload per hostname, or an error describing why
// the host yielded nothing this run.
type Executor interface {
	Collect(ctx context.Context, hostname string) (json.RawMessage, error)
}

// ScriptExecutor runs the fixed inventory script through the control plane.
type ScriptExecutor struct {
	runner ScriptRunner
	script string
}

// NewScriptExecutor creates an executor dispatching CollectScript.
func NewScriptExecutor(runner ScriptRunner) *ScriptExecutor {
	return &ScriptExecutor{
		runner: runner,
		script: CollectScript,
	}
}

// Collect executes the script on hostname and decodes its stdout.
// Every failure mode comes back as an error, never a panic, so the
// dispatcher can contain it at the task boundary.
func (e *ScriptExecutor) Collect(ctx context.Context, hostname string) (json.RawMessage, error) {
	resp, err := e.runner.Execute(ctx, hostname, e.script)
	if err != nil {
		return nil, err
	}

	if !resp.Success || resp.ExitCode != 0 {
		return nil, fmt.Errorf("script failed (exit=%d, err=%s)", resp.ExitCode, truncate(resp.Stderr, 100))
	}
	if resp.Stdout == "" {
		return nil, fmt.Errorf("script produced no output")
	}

	var payload json.RawMessage
	if err := json.Unmarshal([]byte(resp.Stdout), &payload); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}

	return payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
