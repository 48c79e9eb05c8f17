// Package reviser implements the Reviser (C5): it rewrites a flawed plan
// given its critique, falling back to the original plan on any failure.
package reviser

import (
	"context"
	"fmt"
	"strings"

	"github.com/aletheialabs/hplan-core/core/planparse"
	"github.com/aletheialabs/hplan-core/core/task"
	"github.com/aletheialabs/hplan-core/core/verifier"
	"github.com/aletheialabs/hplan-core/runtime/agent/model"
)

// Reviser rewrites flawed plans given their critique.
type Reviser struct {
	client model.Client
}

// New constructs a Reviser backed by the given model client.
func New(client model.Client) *Reviser {
	return &Reviser{client: client}
}

// Fix emits the flawed plan and its critique to the LLM with instructions
// to emit a corrected plan in the same JSON schema. If the LLM call fails
// or the response fails to parse (via the strict Plan Parser), the original
// plan is returned unchanged — the node will re-verify and may loop,
// subject to its own retry caps.
func (r *Reviser) Fix(ctx context.Context, objective string, plan task.Plan, critique verifier.Critique) task.Plan {
	if strings.TrimSpace(critique.Feedback) == "" {
		return plan
	}

	req := &model.Request{
		ModelClass: model.ModelClassPlanner,
		Messages: []model.Message{
			{Role: model.ConversationRoleSystem, Text: systemPrompt},
			{Role: model.ConversationRoleUser, Text: userPrompt(objective, plan, critique)},
		},
		MaxTokens: 4096,
	}

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return plan
	}

	revised, err := planparse.ParseStrict(resp.Text)
	if err != nil {
		return plan
	}
	return revised
}

const systemPrompt = `You are revising a flawed plan based on a verifier's critique. Emit a
corrected JSON array of tasks in exactly the same schema as the original
plan: {"id": str?, "type":"delegate"|"tool", "objective": str, "tool": str?,
"args": object?}. Address every point in the critique. Respond with the
JSON array only, with no prose and no Markdown code fences.`

func userPrompt(objective string, plan task.Plan, critique verifier.Critique) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n", objective)
	b.WriteString("Original plan (JSON):\n")
	for _, t := range plan.Tasks {
		fmt.Fprintf(&b, "- id=%s type=%s objective=%q tool=%q args=%v\n", t.ID, t.Kind, t.Objective, t.Tool, t.Args)
	}
	fmt.Fprintf(&b, "Critique: %s\n", critique.Feedback)
	return b.String()
}
