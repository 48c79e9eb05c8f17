// Package taskreport implements Task Report (C10): the structured outcome
// submission that records completion metadata on a goal and gates
// completion on subgoal closure.
package taskreport

import (
	"context"
	"errors"
	"fmt"

	"github.com/aletheialabs/hplan-core/core/store"
	"github.com/aletheialabs/hplan-core/runtime/agent/hooks"
	"github.com/aletheialabs/hplan-core/runtime/agent/telemetry"
)

// Outcome classifies a Task Report submission.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFailure    Outcome = "failure"
	OutcomeBlocked    Outcome = "blocked"
	OutcomeInProgress Outcome = "in_progress"
)

// Field length caps (spec.md §4.10).
const (
	maxSummaryLen = 400
	maxReportLen  = 20000
	maxErrorLen   = 2000
)

// Submission is the Task Report payload (spec.md §6 wire format).
type Submission struct {
	GoalID        string
	Outcome       Outcome
	Summary       string
	Report        string
	Error         string
	MarkCompleted *bool // nil means "default true", per spec.md §4.10
}

func (s Submission) markCompleted() bool {
	if s.MarkCompleted == nil {
		return true
	}
	return *s.MarkCompleted
}

// Errors returned by Submit. ErrSubgoalsIncomplete wraps the id of the
// incomplete child goal that blocked completion.
var (
	ErrInvalidOutcome     = errors.New("taskreport: invalid outcome")
	ErrMissingError       = errors.New("taskreport: error is required for failure/blocked outcomes")
	ErrSubgoalsIncomplete = errors.New("taskreport: subgoals incomplete")
)

// Reporter submits Task Reports against a store.Store, gating completion
// on subgoal closure and publishing a GoalCompleted event when a goal is
// finalized.
type Reporter struct {
	store  store.Store
	bus    hooks.Bus
	logger telemetry.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithBus attaches an event bus that receives GoalCompleted notifications.
func WithBus(b hooks.Bus) Option {
	return func(r *Reporter) { r.bus = b }
}

// WithLogger overrides the reporter's logger.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Reporter) { r.logger = l }
}

// New constructs a Reporter backed by s.
func New(s store.Store, opts ...Option) *Reporter {
	r := &Reporter{store: s, logger: telemetry.NoopLogger{}}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// validate applies the Submission's field rules (spec.md §4.10):
// outcome must be one of the four enum values, and error is required for
// failure/blocked outcomes.
func validate(s Submission) error {
	switch s.Outcome {
	case OutcomeSuccess, OutcomeFailure, OutcomeBlocked, OutcomeInProgress:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, s.Outcome)
	}
	if (s.Outcome == OutcomeFailure || s.Outcome == OutcomeBlocked) && s.Error == "" {
		return ErrMissingError
	}
	return nil
}

// Submit records a Task Report against the goal named by sub.GoalID. On
// success with mark_completed (the default), the operation fails if any
// child goal of the target is not yet completed — this is the goal
// completion gate (spec.md §3, §4.10, §9). On any other outcome, or on
// success without mark_completed, the goal is left (or set) pending.
func (r *Reporter) Submit(ctx context.Context, sub Submission) error {
	if err := validate(sub); err != nil {
		return err
	}

	goal, err := r.store.Get(ctx, sub.GoalID)
	if err != nil {
		return fmt.Errorf("taskreport: %w", err)
	}

	metadata := map[string]any{
		"task_outcome": string(sub.Outcome),
		"summary":      truncate(sub.Summary, maxSummaryLen),
		"report":       truncate(sub.Report, maxReportLen),
	}
	if sub.Error != "" {
		metadata["last_error"] = truncate(sub.Error, maxErrorLen)
	}
	if err := r.store.UpdateMetadata(ctx, sub.GoalID, metadata); err != nil {
		return fmt.Errorf("taskreport: %w", err)
	}

	if sub.Outcome != OutcomeSuccess || !sub.markCompleted() {
		r.logger.Info(ctx, "task report recorded", "goal_id", sub.GoalID, "outcome", sub.Outcome, "completed", false)
		return r.store.SetStatus(ctx, sub.GoalID, store.GoalPending)
	}

	if err := r.ensureSubgoalsComplete(ctx, goal); err != nil {
		return err
	}

	if err := r.store.SetStatus(ctx, sub.GoalID, store.GoalCompleted); err != nil {
		return fmt.Errorf("taskreport: %w", err)
	}
	r.logger.Info(ctx, "goal marked completed", "goal_id", sub.GoalID)

	if r.bus != nil {
		event := hooks.NewGoalCompletedEvent(sub.GoalID, truncate(sub.Summary, maxSummaryLen))
		if err := r.bus.Publish(ctx, event); err != nil {
			r.logger.Warn(ctx, "goal_completed publish failed", "goal_id", sub.GoalID, "reason", err.Error())
		}
	}
	return nil
}

// ensureSubgoalsComplete is the subgoal-closure gate (spec.md invariant
// §3: "A goal may be marked completed only when all its child goals are
// already completed"). It is enforced here and is the only place a
// completion request is honored.
func (r *Reporter) ensureSubgoalsComplete(ctx context.Context, goal store.Goal) error {
	siblings, err := r.store.ListGoalsForProject(ctx, goal.ProjectID)
	if err != nil {
		return fmt.Errorf("taskreport: %w", err)
	}
	for _, child := range store.ChildGoals(siblings, goal.ID) {
		if child.Status != store.GoalCompleted {
			return fmt.Errorf("%w: child goal %q is not completed", ErrSubgoalsIncomplete, child.ID)
		}
	}
	return nil
}
