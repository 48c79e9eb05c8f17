// Package supervisor implements the Node Supervisor (C7): dynamic,
// one-for-one child management with restart=temporary. Terminated nodes
// are never restarted — a parent that loses a child decides, via its own
// replanning, whether to respawn.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/aletheialabs/hplan-core/core/node"
	"github.com/aletheialabs/hplan-core/runtime/agent/engine"
	"github.com/aletheialabs/hplan-core/runtime/agent/telemetry"
)

// workflowName is the logical workflow every spawned Node runs under. One
// definition, registered once per Supervisor, backs every child: the
// engine gives the Node's run-to-completion loop a uniform place to live
// regardless of which Engine adapter (in-memory, or a durable backend the
// host application supplies) is wired in.
const workflowName = "hplan.node"

// nodeWorkflow is the engine.WorkflowFunc backing workflowName: it simply
// runs the Node passed as input to completion and returns its Outcome.
// The Node's own mailbox loop remains the source of truth for phase-token
// discipline; the engine only supplies the asynchronous execution
// substrate the Node runs within.
func nodeWorkflow(ctx engine.WorkflowContext, input any) (any, error) {
	n, ok := input.(*node.Node)
	if !ok {
		return nil, fmt.Errorf("supervisor: unexpected workflow input %T", input)
	}
	outcome := n.Run(ctx.Context())
	return outcome, nil
}

// ChildInfo is a live child's introspection snapshot.
type ChildInfo struct {
	ID        string
	ParentID  string
	Status    node.Status
	Depth     int
	Objective string
	ProjectID string
}

// Supervisor owns the lifecycle of every Node it spawns and exposes an
// enumeration of live children for introspection.
type Supervisor struct {
	logger telemetry.Logger
	eng    engine.Engine

	registerOnce sync.Once
	registerErr  error

	mu       sync.RWMutex
	children map[string]*node.Node
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger overrides the supervisor's logger.
func WithLogger(l telemetry.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithEngine supplies the engine.Engine substrate each spawned Node runs
// under as an engine workflow. When unset, Spawn falls back to driving the
// Node directly on a bare goroutine (the behavior of earlier revisions),
// which remains correct but forgoes the engine's observability/replay
// hooks.
func WithEngine(e engine.Engine) Option {
	return func(s *Supervisor) { s.eng = e }
}

// New constructs a Supervisor with no live children.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{logger: telemetry.NoopLogger{}, children: make(map[string]*node.Node)}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

// ensureWorkflowRegistered registers nodeWorkflow under workflowName the
// first time it is needed. Safe to call from every Spawn.
func (s *Supervisor) ensureWorkflowRegistered(ctx context.Context) error {
	s.registerOnce.Do(func() {
		s.registerErr = s.eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
			Name:    workflowName,
			Handler: nodeWorkflow,
		})
	})
	return s.registerErr
}

// Spawn starts a new child node per req and registers it for
// introspection. It satisfies node.ChildSpawner, so a Node can delegate
// through a Supervisor without depending on the concrete type.
func (s *Supervisor) Spawn(ctx context.Context, req node.SpawnRequest) (string, error) {
	id := uuid.NewString()
	child := node.New(node.Config{
		ID:         id,
		ParentID:   req.ParentID,
		Objective:  req.Objective,
		Depth:      req.Depth,
		MaxDepth:   req.MaxDepth,
		ProjectID:  req.ProjectID,
		ModelClass: req.ModelClass,
		Bindings:   req.Bindings,
		Spawner:    s,
		OnDone: func(r node.ChildResult) {
			s.unregister(id)
			if req.OnDone != nil {
				req.OnDone(r)
			}
		},
	})

	s.register(child)
	s.logger.Info(ctx, "spawned child node", "node_id", id, "parent_id", req.ParentID, "depth", req.Depth, "objective", req.Objective)

	if s.eng == nil {
		go func() { child.Run(ctx) }()
		return id, nil
	}

	if err := s.ensureWorkflowRegistered(ctx); err != nil {
		s.unregister(id)
		return "", fmt.Errorf("supervisor: register workflow: %w", err)
	}
	handle, err := s.eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       "node-" + id,
		Workflow: workflowName,
		Input:    child,
	})
	if err != nil {
		s.unregister(id)
		return "", fmt.Errorf("supervisor: start workflow: %w", err)
	}
	go func() {
		var outcome node.Outcome
		_ = handle.Wait(ctx, &outcome) // Node.Run already reports via OnDone; errors surface as a failed Outcome there.
	}()
	return id, nil
}

func (s *Supervisor) register(n *node.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[n.ID()] = n
}

func (s *Supervisor) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.children, id)
}

// Children returns a snapshot of every node currently tracked by the
// supervisor, live or only just finished (until its OnDone callback
// removes it).
func (s *Supervisor) Children() []ChildInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChildInfo, 0, len(s.children))
	for _, n := range s.children {
		out = append(out, ChildInfo{
			ID:        n.ID(),
			ParentID:  n.ParentID(),
			Status:    n.Status(),
			Depth:     n.Depth(),
			Objective: n.Objective(),
			ProjectID: n.ProjectID(),
		})
	}
	return out
}

// Lookup returns the live child with the given id, if any.
func (s *Supervisor) Lookup(id string) (ChildInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.children[id]
	if !ok {
		return ChildInfo{}, false
	}
	return ChildInfo{
		ID:        n.ID(),
		ParentID:  n.ParentID(),
		Status:    n.Status(),
		Depth:     n.Depth(),
		Objective: n.Objective(),
		ProjectID: n.ProjectID(),
	}, true
}

// ErrNotFound is returned by operations referencing an unknown child.
var ErrNotFound = fmt.Errorf("supervisor: child not found")
