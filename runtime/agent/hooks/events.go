package hooks

import (
	"context"
	"time"
)

// EventType classifies a runtime event published on the Bus.
type EventType string

const (
	// GoalCompleted fires when a Task Report marks a goal completed (any
	// goal, not only a root one). Its NodeID carries the goal's id.
	GoalCompleted EventType = "goal_completed"

	// ChildSucceeded fires when a delegated child node reaches the done
	// GVR state and its parent should resume waiting on remaining children.
	ChildSucceeded EventType = "child_succeeded"

	// ChildFailed fires when a delegated child node exhausts its retries
	// or is abandoned, so the parent can decide whether to continue,
	// retry, or fail outward.
	ChildFailed EventType = "child_failed"

	// NodeStateChanged fires on every GVR transition for observability
	// consumers (dashboards, audit logs) that want a full trace.
	NodeStateChanged EventType = "node_state_changed"
)

// Event is a single runtime notification published to subscribers.
type Event struct {
	// Type classifies the event.
	Type EventType

	// NodeID identifies the node the event concerns.
	NodeID string

	// ParentID identifies the parent node when NodeID is a delegated
	// child; empty for the root node.
	ParentID string

	// At records when the event was produced.
	At time.Time

	// Detail carries a short human-readable summary (e.g., the new GVR
	// state name, or a truncated failure reason).
	Detail string

	// Err carries the triggering error for ChildFailed events, nil
	// otherwise.
	Err error
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, event Event) error

// HandleEvent calls f.
func (f SubscriberFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

func newEvent(typ EventType, nodeID string, detail string, err error) Event {
	return Event{Type: typ, NodeID: nodeID, At: time.Now(), Detail: detail, Err: err}
}

// NewGoalCompletedEvent builds a GoalCompleted event; nodeID is the id of
// the completed goal.
func NewGoalCompletedEvent(nodeID, detail string) Event {
	return newEvent(GoalCompleted, nodeID, detail, nil)
}

// NewChildSucceededEvent builds a ChildSucceeded event.
func NewChildSucceededEvent(nodeID, parentID, detail string) Event {
	e := newEvent(ChildSucceeded, nodeID, detail, nil)
	e.ParentID = parentID
	return e
}

// NewChildFailedEvent builds a ChildFailed event.
func NewChildFailedEvent(nodeID, parentID string, err error) Event {
	e := newEvent(ChildFailed, nodeID, err.Error(), err)
	e.ParentID = parentID
	return e
}

// NewNodeStateChangedEvent builds a NodeStateChanged event.
func NewNodeStateChangedEvent(nodeID, newState string) Event {
	return newEvent(NodeStateChanged, nodeID, newState, nil)
}
