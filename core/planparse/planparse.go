// Package planparse implements the Plan Parser (C2): it decodes LLM output,
// tolerant of Markdown code fences, into a validated task.Plan.
package planparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aletheialabs/hplan-core/core/task"
	"github.com/google/uuid"
)

// ErrEmptyPlan is returned when the decoded array normalizes to zero valid
// tasks.
var ErrEmptyPlan = errors.New("planparse: empty plan")

// rawTask mirrors the wire shape of one element in the Generator/Reviser
// plan JSON (spec.md §6): {"id": str?, "type":"delegate"|"tool",
// "objective": str, "tool": str?, "args": object?}.
type rawTask struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Objective string         `json:"objective"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
}

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Parse accepts raw model output and returns a validated, non-empty Plan.
// It attempts a strict JSON array decode first; on failure it searches for
// a fenced ```json ... ``` block containing a JSON array and decodes that;
// on failure it falls back to the first embedded [...] span in the text.
func Parse(raw string) (task.Plan, error) {
	tasks, err := decodeTaskArray(raw)
	if err != nil {
		return task.Plan{}, fmt.Errorf("planparse: %w", err)
	}
	plan := normalize(tasks)
	if len(plan.Tasks) == 0 {
		return task.Plan{}, ErrEmptyPlan
	}
	return plan, nil
}

// ParseStrict behaves like Parse but never falls back to fence/embedded-span
// extraction: it returns an error immediately if raw is not a strict JSON
// array. Callers that need to distinguish "the model emitted malformed
// prose" from "the model emitted a slightly-wrapped array" use this path.
func ParseStrict(raw string) (task.Plan, error) {
	var raws []rawTask
	if err := json.Unmarshal([]byte(raw), &raws); err != nil {
		return task.Plan{}, fmt.Errorf("planparse: strict decode: %w", err)
	}
	plan := normalize(raws)
	if len(plan.Tasks) == 0 {
		return task.Plan{}, ErrEmptyPlan
	}
	return plan, nil
}

func decodeTaskArray(raw string) ([]rawTask, error) {
	var raws []rawTask
	if err := json.Unmarshal([]byte(raw), &raws); err == nil {
		return raws, nil
	}

	if m := fencedJSONBlock.FindStringSubmatch(raw); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &raws); err == nil {
			return raws, nil
		}
	}

	if span, ok := embeddedArraySpan(raw); ok {
		if err := json.Unmarshal([]byte(span), &raws); err == nil {
			return raws, nil
		}
	}

	return nil, errors.New("no valid JSON task array found in model output")
}

// embeddedArraySpan returns the text between the first "[" and the last "]"
// in raw, tolerating surrounding prose the model may have emitted despite
// instructions not to.
func embeddedArraySpan(raw string) (string, bool) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// normalize converts raw wire tasks into validated task.Task values,
// dropping any element that fails normalization (invalid type, empty
// objective, or shell invariant violation).
func normalize(raws []rawTask) task.Plan {
	var out []task.Task
	for _, r := range raws {
		t, ok := normalizeOne(r)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	return task.Plan{Tasks: out}
}

func normalizeOne(r rawTask) (task.Task, bool) {
	objective := strings.TrimSpace(r.Objective)
	if objective == "" {
		return task.Task{}, false
	}

	var kind task.Kind
	switch r.Type {
	case string(task.KindDelegate):
		kind = task.KindDelegate
	case string(task.KindTool):
		kind = task.KindTool
	default:
		return task.Task{}, false
	}

	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = uuid.NewString()
	}

	t := task.Task{ID: id, Kind: kind, Objective: objective}

	if kind == task.KindTool {
		tool := strings.TrimSpace(r.Tool)
		if tool == "" {
			tool = "wait"
		}
		args := r.Args
		if args == nil {
			args = map[string]any{}
		}
		t.Tool = tool
		t.Args = args

		if err := task.ValidateShellInvariant(t); err != nil {
			return task.Task{}, false
		}
	}

	return t, true
}

// Truncate returns the first n bytes of raw (or raw itself if shorter),
// trimmed of surrounding whitespace. The Verifier (§4.4) uses this to build
// a bounded `flawed` message when final JSON parsing fails.
func Truncate(raw string, n int) string {
	b := []byte(raw)
	if len(b) <= n {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(string(b[:n]))
}
