package taskreport

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aletheialabs/hplan-core/core/store"
	storeinmem "github.com/aletheialabs/hplan-core/core/store/inmem"
	"github.com/aletheialabs/hplan-core/runtime/agent/hooks"
)

func TestSubmitSuccessWithNoChildrenCompletes(t *testing.T) {
	s := storeinmem.New()
	g, err := s.CreateGoal(context.Background(), store.Goal{ProjectID: "p1"})
	require.NoError(t, err)

	bus := hooks.NewBus()
	var published []hooks.Event
	_, err = bus.Register(hooks.SubscriberFunc(func(_ context.Context, e hooks.Event) error {
		published = append(published, e)
		return nil
	}))
	require.NoError(t, err)

	r := New(s, WithBus(bus))
	err = r.Submit(context.Background(), Submission{GoalID: g.ID, Outcome: OutcomeSuccess, Summary: "done"})
	require.NoError(t, err)

	got, err := s.Get(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.GoalCompleted, got.Status)
	require.Len(t, published, 1)
	require.Equal(t, hooks.GoalCompleted, published[0].Type)
}

// Scenario F (spec.md §8): a goal with an incomplete child must not be
// marked completed, and the report names the offending child.
func TestSubmitSuccessGatedByIncompleteChild(t *testing.T) {
	s := storeinmem.New()
	parent, err := s.CreateGoal(context.Background(), store.Goal{ProjectID: "p1"})
	require.NoError(t, err)
	child, err := s.CreateGoal(context.Background(), store.Goal{ProjectID: "p1", ParentGoalID: parent.ID})
	require.NoError(t, err)

	r := New(s)
	err = r.Submit(context.Background(), Submission{GoalID: parent.ID, Outcome: OutcomeSuccess})
	require.ErrorIs(t, err, ErrSubgoalsIncomplete)
	require.Contains(t, err.Error(), child.ID)

	got, err := s.Get(context.Background(), parent.ID)
	require.NoError(t, err)
	require.Equal(t, store.GoalPending, got.Status)
}

func TestSubmitSuccessWithMarkCompletedFalseStaysPending(t *testing.T) {
	s := storeinmem.New()
	g, err := s.CreateGoal(context.Background(), store.Goal{ProjectID: "p1"})
	require.NoError(t, err)

	no := false
	r := New(s)
	err = r.Submit(context.Background(), Submission{GoalID: g.ID, Outcome: OutcomeSuccess, MarkCompleted: &no})
	require.NoError(t, err)

	got, err := s.Get(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.GoalPending, got.Status)
}

func TestSubmitFailureRequiresError(t *testing.T) {
	s := storeinmem.New()
	g, err := s.CreateGoal(context.Background(), store.Goal{ProjectID: "p1"})
	require.NoError(t, err)

	r := New(s)
	err = r.Submit(context.Background(), Submission{GoalID: g.ID, Outcome: OutcomeFailure})
	require.ErrorIs(t, err, ErrMissingError)

	err = r.Submit(context.Background(), Submission{GoalID: g.ID, Outcome: OutcomeFailure, Error: "boom"})
	require.NoError(t, err)

	got, err := s.Get(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.GoalPending, got.Status)
	require.Equal(t, "boom", got.Metadata["last_error"])
}

func TestSubmitInvalidOutcomeRejected(t *testing.T) {
	s := storeinmem.New()
	g, err := s.CreateGoal(context.Background(), store.Goal{ProjectID: "p1"})
	require.NoError(t, err)

	r := New(s)
	err = r.Submit(context.Background(), Submission{GoalID: g.ID, Outcome: "bogus"})
	require.ErrorIs(t, err, ErrInvalidOutcome)
}

func TestSubmitTruncatesOversizedFields(t *testing.T) {
	s := storeinmem.New()
	g, err := s.CreateGoal(context.Background(), store.Goal{ProjectID: "p1"})
	require.NoError(t, err)

	r := New(s)
	longSummary := strings.Repeat("a", maxSummaryLen+50)
	longReport := strings.Repeat("b", maxReportLen+50)
	longError := strings.Repeat("c", maxErrorLen+50)
	err = r.Submit(context.Background(), Submission{
		GoalID: g.ID, Outcome: OutcomeBlocked, Summary: longSummary, Report: longReport, Error: longError,
	})
	require.NoError(t, err)

	got, err := s.Get(context.Background(), g.ID)
	require.NoError(t, err)
	require.Len(t, got.Metadata["summary"], maxSummaryLen)
	require.Len(t, got.Metadata["report"], maxReportLen)
	require.Len(t, got.Metadata["last_error"], maxErrorLen)
}
