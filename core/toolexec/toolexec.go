// Package toolexec implements the Tool Executor (C1): it normalizes a leaf
// task's tool name and dispatches it to the external tool registry.
package toolexec

import (
	"context"
	"strings"

	"github.com/aletheialabs/hplan-core/core/task"
	"github.com/aletheialabs/hplan-core/runtime/agent"
	"github.com/aletheialabs/hplan-core/runtime/agent/telemetry"
	"github.com/aletheialabs/hplan-core/runtime/agent/tools"
	"github.com/aletheialabs/hplan-core/runtime/agent/toolerrors"
)

// Registry is the external tool registry the Tool Executor dispatches to
// (spec.md §6). Implementations are substitutable; the host application
// supplies the concrete registry (HTTP gateway, in-process map, etc.).
type Registry interface {
	// Execute runs the named tool with the given arguments and returns its
	// result, or an error describing why execution failed.
	Execute(ctx context.Context, name tools.Ident, args map[string]any) (any, error)
}

// Executor dispatches tool tasks to a Registry after normalizing the tool
// name.
type Executor struct {
	registry Registry
	logger   telemetry.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger configures the executor's logger. When unset, a no-op logger
// is used.
func WithLogger(logger telemetry.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// New constructs an Executor dispatching to the given Registry.
func New(registry Registry, opts ...Option) *Executor {
	e := &Executor{registry: registry, logger: telemetry.NoopLogger{}}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	return e
}

// legacyAliases maps deprecated tool names emitted by some models to their
// canonical registry name (spec.md §4.1).
var legacyAliases = map[string]string{
	"list_files": "list",
	"read_file":  "read",
	"edit_file":  "edit",
	"grep_files": "grep",
	"run_shell":  "shell",
}

// legacyPrefixes lists namespace prefixes models sometimes prepend to tool
// names; they are stripped before alias lookup.
var legacyPrefixes = []string{"default_api:", "tools:", "orchid:"}

// NormalizeName trims, lowercases, strips known namespace prefixes, and
// maps legacy aliases to the canonical tool registry name.
func NormalizeName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range legacyPrefixes {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			break
		}
	}
	if canonical, ok := legacyAliases[name]; ok {
		return canonical
	}
	return name
}

// Execute runs a "tool"-kind Task and returns its result, or a *toolerrors.
// ToolError describing the failure with at minimum
// {tool, original_tool, reason, args} context. Non-tool tasks fail with
// "Invalid tool task".
func (e *Executor) Execute(ctx context.Context, t task.Task) (any, error) {
	if t.Kind != task.KindTool {
		return nil, toolerrors.New("Invalid tool task").WithContext(map[string]any{"task": t})
	}

	original := t.Tool
	normalized := NormalizeName(original)
	e.logger.Debug(ctx, "executing tool", "tool", normalized, "original_tool", original, "task_id", t.ID)

	result, err := e.registry.Execute(ctx, tools.Ident(normalized), t.Args)
	if err != nil {
		e.logger.Warn(ctx, "tool execution failed", "tool", normalized, "original_tool", original, "reason", err.Error())
		return nil, toolerrors.NewWithCause("tool execution failed", err).WithContext(map[string]any{
			"tool":          normalized,
			"original_tool": original,
			"reason":        err.Error(),
			"args":          t.Args,
		})
	}
	if bounded, ok := result.(agent.BoundedResult); ok {
		b := bounded.Bounds()
		if b.Truncated {
			e.logger.Warn(ctx, "tool result truncated", "tool", normalized, "task_id", t.ID,
				"returned", b.Returned, "total", b.Total, "hint", b.RefinementHint)
		}
	}
	return result, nil
}
