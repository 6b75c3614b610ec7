package tools

import (
	"context"
	"fmt"
)

// Executor adapts a Registry to the reasoning engine's ToolExecutor
// shape: resolve by name, run, and always return observation text
// rather than an error (spec.md §4.5.1 — a missing tool or a failed
// call both become the step's observation, never a crash).
type Executor struct {
	Registry *Registry
}

// Execute implements reasoning.ToolExecutor.
func (e Executor) Execute(ctx context.Context, name string, parameters map[string]interface{}) string {
	tool, ok := e.Registry.Resolve(name)
	if !ok {
		return fmt.Sprintf("Error: tool '%s' not found", name)
	}
	out, err := tool.Execute(ctx, parameters)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return out
}
