// Package store declares the narrow interface the core consumes for the
// external Object Store (spec.md §6). Projects, goals, and the rest of the
// persistent entity surface are owned by the host application; this
// package only names the read-mostly operations Task Report needs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/aletheialabs/hplan-core/runtime/agent"
)

// GoalStatus is a Goal's lifecycle state.
type GoalStatus string

const (
	// GoalPending marks a goal not yet completed.
	GoalPending GoalStatus = "pending"
	// GoalCompleted marks a goal whose work (and every subgoal's work) is
	// done.
	GoalCompleted GoalStatus = "completed"
)

// Goal is the persistent record of work owned by the external store. The
// core reads it read-mostly and writes only through SetStatus and
// UpdateMetadata.
type Goal struct {
	ID           string
	ProjectID    string
	ParentGoalID string
	// AgentID is the agent assigned to this goal, if any (spec.md §3).
	AgentID   agent.Ident
	DependsOn []string
	Status    GoalStatus
	Objective string
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrNotFound is returned by Get when no goal with the given id exists.
var ErrNotFound = errors.New("store: goal not found")

// Store is the Object Store's narrow surface (spec.md §6): list_goals_for_project,
// get, update_metadata, create(:goal,...), set_status.
type Store interface {
	// ListGoalsForProject returns every goal belonging to projectID, in no
	// particular order.
	ListGoalsForProject(ctx context.Context, projectID string) ([]Goal, error)

	// Get returns the goal with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Goal, error)

	// UpdateMetadata merges fields into the goal's metadata map.
	UpdateMetadata(ctx context.Context, id string, fields map[string]any) error

	// CreateGoal creates a new goal under projectID. If g.ID is empty, an
	// id is assigned by the implementation.
	CreateGoal(ctx context.Context, g Goal) (Goal, error)

	// SetStatus transitions the goal to status. Calling SetStatus twice
	// with the same status is a no-op that still succeeds (idempotent).
	SetStatus(ctx context.Context, id string, status GoalStatus) error
}

// ChildGoals returns every goal in all whose ParentGoalID equals parentID.
// It is a small helper used by Task Report's subgoal-closure gate so
// implementations of Store do not each need to reimplement the filter.
func ChildGoals(all []Goal, parentID string) []Goal {
	var out []Goal
	for _, g := range all {
		if g.ParentGoalID == parentID {
			out = append(out, g)
		}
	}
	return out
}
