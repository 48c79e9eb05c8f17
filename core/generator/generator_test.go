package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aletheialabs/hplan-core/runtime/agent/model"
)

type fakeClient struct {
	resp *model.Response
	err  error
}

func (f *fakeClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return f.resp, f.err
}

func TestDecomposeHappyPath(t *testing.T) {
	client := &fakeClient{resp: &model.Response{
		Text: `[{"id":"tool_1","type":"tool","objective":"echo objective","tool":"task_report","args":{"completed":"finish objective"}}]`,
	}}
	g := New(client)

	plan, err := g.Decompose(context.Background(), "finish objective", nil, model.ModelClassPlanner)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	require.Equal(t, "tool_1", plan.Tasks[0].ID)
}

func TestDecomposeEmptyPlanIsError(t *testing.T) {
	client := &fakeClient{resp: &model.Response{Text: `[]`}}
	g := New(client)

	_, err := g.Decompose(context.Background(), "obj", nil, model.ModelClassPlanner)
	require.Error(t, err)
}

func TestDecomposeEmptyOutputIsError(t *testing.T) {
	client := &fakeClient{resp: &model.Response{Text: "   "}}
	g := New(client)

	_, err := g.Decompose(context.Background(), "obj", nil, model.ModelClassPlanner)
	require.ErrorIs(t, err, ErrEmptyOutput)
}

func TestDecomposeTransportErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	client := &fakeClient{err: boom}
	g := New(client)

	_, err := g.Decompose(context.Background(), "obj", nil, model.ModelClassPlanner)
	require.ErrorIs(t, err, boom)
}
