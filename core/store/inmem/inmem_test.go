package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aletheialabs/hplan-core/core/store"
)

func TestCreateGetSetStatusRoundTrip(t *testing.T) {
	s := New()
	g, err := s.CreateGoal(context.Background(), store.Goal{ProjectID: "proj-1", Objective: "ship it"})
	require.NoError(t, err)
	require.NotEmpty(t, g.ID)
	require.Equal(t, store.GoalPending, g.Status)

	got, err := s.Get(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, "ship it", got.Objective)

	require.NoError(t, s.SetStatus(context.Background(), g.ID, store.GoalCompleted))
	got, err = s.Get(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.GoalCompleted, got.Status)

	// Setting the same status twice is idempotent.
	require.NoError(t, s.SetStatus(context.Background(), g.ID, store.GoalCompleted))
	got, err = s.Get(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.GoalCompleted, got.Status)
}

func TestGetUnknownGoalIsNotFound(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListGoalsForProjectFiltersByProject(t *testing.T) {
	s := New()
	a, err := s.CreateGoal(context.Background(), store.Goal{ProjectID: "proj-1"})
	require.NoError(t, err)
	_, err = s.CreateGoal(context.Background(), store.Goal{ProjectID: "proj-2"})
	require.NoError(t, err)

	goals, err := s.ListGoalsForProject(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	require.Equal(t, a.ID, goals[0].ID)
}

func TestUpdateMetadataMergesFields(t *testing.T) {
	s := New()
	g, err := s.CreateGoal(context.Background(), store.Goal{ProjectID: "proj-1", Metadata: map[string]any{"a": 1}})
	require.NoError(t, err)

	require.NoError(t, s.UpdateMetadata(context.Background(), g.ID, map[string]any{"b": 2}))

	got, err := s.Get(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Metadata["a"])
	require.Equal(t, 2, got.Metadata["b"])
}

func TestChildGoals(t *testing.T) {
	all := []store.Goal{
		{ID: "root"},
		{ID: "c1", ParentGoalID: "root"},
		{ID: "c2", ParentGoalID: "root"},
		{ID: "other", ParentGoalID: "not-root"},
	}
	children := store.ChildGoals(all, "root")
	require.Len(t, children, 2)
}
