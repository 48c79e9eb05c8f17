package toolexec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aletheialabs/hplan-core/core/task"
	"github.com/aletheialabs/hplan-core/runtime/agent/tools"
	"github.com/aletheialabs/hplan-core/runtime/agent/toolerrors"
)

type fakeRegistry struct {
	calls   []tools.Ident
	results map[tools.Ident]any
	fail    map[tools.Ident]error
}

func (f *fakeRegistry) Execute(_ context.Context, name tools.Ident, _ map[string]any) (any, error) {
	f.calls = append(f.calls, name)
	if err, ok := f.fail[name]; ok {
		return nil, err
	}
	return f.results[name], nil
}

func TestNormalizeNameStripsPrefixesAndAliases(t *testing.T) {
	cases := map[string]string{
		"  Read_File  ":       "read",
		"default_api:list":    "list",
		"tools:grep_files":    "grep",
		"orchid:run_shell":    "shell",
		"edit_file":           "edit",
		"already_canonical":   "already_canonical",
		"TOOLS:EDIT_FILE":     "edit",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeName(in), "input %q", in)
	}
}

func TestExecuteDispatchesNormalizedName(t *testing.T) {
	reg := &fakeRegistry{results: map[tools.Ident]any{"read": "file contents"}}
	ex := New(reg)

	out, err := ex.Execute(context.Background(), task.Task{
		Kind: task.KindTool, ID: "t1", Tool: "read_file", Args: map[string]any{"path": "a.go"},
	})
	require.NoError(t, err)
	require.Equal(t, "file contents", out)
	require.Equal(t, []tools.Ident{"read"}, reg.calls)
}

func TestExecuteNonToolTaskFails(t *testing.T) {
	ex := New(&fakeRegistry{})
	_, err := ex.Execute(context.Background(), task.Task{Kind: task.KindDelegate, ID: "d1"})
	require.Error(t, err)
	var te *toolerrors.ToolError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "Invalid tool task", te.Message)
}

func TestExecuteWrapsRegistryFailureWithStructuredContext(t *testing.T) {
	boom := errors.New("registry unreachable")
	reg := &fakeRegistry{fail: map[tools.Ident]error{"shell": boom}}
	ex := New(reg)

	_, err := ex.Execute(context.Background(), task.Task{
		Kind: task.KindTool, ID: "t1", Tool: "run_shell", Args: map[string]any{"command": "ls"},
	})
	require.Error(t, err)
	var te *toolerrors.ToolError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "shell", te.Context["tool"])
	require.Equal(t, "run_shell", te.Context["original_tool"])
	require.Equal(t, boom.Error(), te.Context["reason"])
	require.ErrorIs(t, err, boom)
}
