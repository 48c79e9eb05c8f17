package planparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aletheialabs/hplan-core/core/task"
)

func TestParseStrictJSON(t *testing.T) {
	plan, err := Parse(`[{"id":"t1","type":"tool","objective":"echo hi","tool":"shell","args":{"command":"echo hi"}}]`)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	require.Equal(t, "t1", plan.Tasks[0].ID)
	require.Equal(t, task.KindTool, plan.Tasks[0].Kind)
}

func TestParseFencedJSONBlock(t *testing.T) {
	raw := "Sure, here is the plan:\n```json\n[{\"type\":\"delegate\",\"objective\":\"do the thing\"}]\n```\nLet me know if you need anything else."
	plan, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	require.Equal(t, task.KindDelegate, plan.Tasks[0].Kind)
	require.NotEmpty(t, plan.Tasks[0].ID)
}

func TestParseEmbeddedArraySpan(t *testing.T) {
	raw := `Plan follows: [{"type":"tool","objective":"do it","tool":"read"}] -- end of plan.`
	plan, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
}

func TestParseEmptyArrayIsEmptyPlanError(t *testing.T) {
	_, err := Parse(`[]`)
	require.ErrorIs(t, err, ErrEmptyPlan)
}

func TestParseDropsInvalidElements(t *testing.T) {
	raw := `[
		{"type":"tool","objective":"","tool":"read"},
		{"type":"bogus","objective":"nope"},
		{"type":"tool","objective":"ok","tool":"shell","args":{"command":"# placeholder"}},
		{"type":"tool","objective":"good one","tool":"shell","args":{"command":"ls -la"}}
	]`
	plan, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	require.Equal(t, "good one", plan.Tasks[0].Objective)
}

func TestParseAssignsMissingToolDefaults(t *testing.T) {
	plan, err := Parse(`[{"type":"tool","objective":"wait a bit"}]`)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	require.Equal(t, "wait", plan.Tasks[0].Tool)
	require.NotNil(t, plan.Tasks[0].Args)
}

func TestParseStrictRejectsFencedInput(t *testing.T) {
	raw := "```json\n[{\"type\":\"tool\",\"objective\":\"x\"}]\n```"
	_, err := ParseStrict(raw)
	require.Error(t, err)
}

func TestParseNoJSONAnywhereFails(t *testing.T) {
	_, err := Parse("I refuse to produce a plan.")
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "hello", Truncate("hello", 10))
	require.Equal(t, "hel", Truncate("hello", 3))
}
