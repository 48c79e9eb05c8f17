// Package generator implements the Generator (C3): it produces a
// decomposition of an objective into delegate/tool tasks via an LLM call.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aletheialabs/hplan-core/core/planparse"
	"github.com/aletheialabs/hplan-core/core/task"
	"github.com/aletheialabs/hplan-core/runtime/agent/model"
)

// ErrEmptyOutput is returned when the LLM call succeeds but returns no
// usable text.
var ErrEmptyOutput = errors.New("generator: empty model output")

// Generator decomposes an objective into a Plan via an LLM call.
type Generator struct {
	client model.Client
}

// New constructs a Generator backed by the given model client.
func New(client model.Client) *Generator {
	return &Generator{client: client}
}

// Decompose produces a decomposition plan for objective, given the tasks
// already completed in this node's history (used to avoid re-deriving
// finished work) and the run's model configuration. It follows the "lazy
// hierarchical planning" policy (spec.md §4.3): abstract or
// not-yet-knowable work must be emitted as "delegate"; only fully concrete
// steps may be "tool".
func (g *Generator) Decompose(ctx context.Context, objective string, completed []task.Result, modelClass model.ModelClass) (task.Plan, error) {
	req := &model.Request{
		ModelClass: modelClass,
		Messages: []model.Message{
			{Role: model.ConversationRoleSystem, Text: systemPrompt},
			{Role: model.ConversationRoleUser, Text: userPrompt(objective, completed)},
		},
		MaxTokens: 4096,
	}

	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return task.Plan{}, fmt.Errorf("generator: llm call failed: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return task.Plan{}, ErrEmptyOutput
	}

	plan, err := planparse.Parse(resp.Text)
	if err != nil {
		return task.Plan{}, fmt.Errorf("generator: %w", err)
	}
	return plan, nil
}

const systemPrompt = `You are a planning assistant practicing lazy hierarchical decomposition.
Decompose the given objective into a JSON array of tasks. Each task is either:
  - {"type":"delegate","objective":"..."} for abstract or not-yet-knowable work
    that should be expanded later by a dedicated planning pass, or
  - {"type":"tool","objective":"...","tool":"...","args":{...}} for a single,
    fully concrete, immediately executable step.
Only emit "tool" tasks when every argument is already known. When in doubt,
prefer "delegate". Respond with the JSON array only, with no prose and no
Markdown code fences.`

func userPrompt(objective string, completed []task.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n", objective)
	if len(completed) > 0 {
		b.WriteString("Already completed in this objective:\n")
		for _, c := range completed {
			fmt.Fprintf(&b, "- %s: %v\n", c.TaskID, c.Value)
		}
	}
	return b.String()
}
