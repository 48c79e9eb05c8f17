package inmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aletheialabs/hplan-core/runtime/agent/engine"
)

func TestActivityAsyncExecution(t *testing.T) {
	eng := New()
	ctx := context.Background()

	require.NoError(t, eng.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: "double",
		Handler: func(_ context.Context, input any) (any, error) {
			n, _ := input.(int)
			return n * 2, nil
		},
	}))

	require.NoError(t, eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "double_workflow",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			fut, err := wfCtx.ExecuteActivityAsync(wfCtx.Context(), engine.ActivityRequest{
				Name:  "double",
				Input: input,
			})
			if err != nil {
				return nil, err
			}
			var out int
			if err := fut.Get(wfCtx.Context(), &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}))

	handle, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       "run-1",
		Workflow: "double_workflow",
		Input:    21,
	})
	require.NoError(t, err)

	var result int
	require.NoError(t, handle.Wait(ctx, &result))
	require.Equal(t, 42, result)
}

func TestActivityFailurePropagates(t *testing.T) {
	eng := New()
	ctx := context.Background()

	boom := errors.New("boom")
	require.NoError(t, eng.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: "fail",
		Handler: func(_ context.Context, _ any) (any, error) {
			return nil, boom
		},
	}))

	// Use ExecuteActivity directly and assert the returned error surfaces.
	require.NoError(t, eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "fail_workflow_direct",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			var out any
			if err := wfCtx.ExecuteActivity(wfCtx.Context(), engine.ActivityRequest{Name: "fail"}, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}))

	handle, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       "run-2",
		Workflow: "fail_workflow_direct",
	})
	require.NoError(t, err)

	err = handle.Wait(ctx, new(any))
	require.ErrorIs(t, err, boom)
}

func TestSignalRoundTrip(t *testing.T) {
	eng := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type pauseRequest struct {
		Reason string
	}

	require.NoError(t, eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "signal_workflow",
		Handler: func(wfCtx engine.WorkflowContext, _ any) (any, error) {
			var req pauseRequest
			if err := wfCtx.SignalChannel("pause").Receive(wfCtx.Context(), &req); err != nil {
				return nil, err
			}
			return req.Reason, nil
		},
	}))

	handle, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       "run-3",
		Workflow: "signal_workflow",
	})
	require.NoError(t, err)

	require.NoError(t, handle.Signal(ctx, "pause", pauseRequest{Reason: "operator_requested"}))

	var reason string
	require.NoError(t, handle.Wait(ctx, &reason))
	require.Equal(t, "operator_requested", reason)
}

func TestStartWorkflowRejectsUnknownName(t *testing.T) {
	eng := New()
	ctx := context.Background()

	_, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "run-4", Workflow: "missing"})
	require.Error(t, err)
}

func TestDuplicateWorkflowRegistrationFails(t *testing.T) {
	eng := New()
	ctx := context.Background()
	def := engine.WorkflowDefinition{
		Name:    "dup",
		Handler: func(engine.WorkflowContext, any) (any, error) { return nil, nil },
	}
	require.NoError(t, eng.RegisterWorkflow(ctx, def))
	require.Error(t, eng.RegisterWorkflow(ctx, def))
}
