// Package node implements the Node (C6): the per-objective
// Generator-Verifier-Reviser state machine. A Node is a single-writer
// actor — its exported state only ever changes from inside its own
// message loop, and all state it gets from async work (LLM calls, child
// delegation) arrives as a tagged message on its mailbox.
package node

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aletheialabs/hplan-core/core/task"
	"github.com/aletheialabs/hplan-core/core/verifier"
	"github.com/aletheialabs/hplan-core/runtime/agent/model"
)

// Status is one of the Node's lifecycle states.
type Status string

const (
	StatusInit       Status = "init"
	StatusPlanning   Status = "planning"
	StatusVerifying  Status = "verifying"
	StatusReplanning Status = "replanning"
	StatusRevising   Status = "revising"
	StatusExecuting  Status = "executing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Phase is the outstanding async phase a Node is waiting on, if any.
type Phase string

const (
	PhaseNone     Phase = ""
	PhaseGenerate Phase = "generate"
	PhaseVerify   Phase = "verify"
	PhaseRevise   Phase = "revise"
)

// Canonical failure reasons surfaced by delegation.
const (
	ReasonMaxDepthReached  = "Max delegation depth reached"
	ReasonDelegationFailed = "Delegation failed"
)

// Planner decomposes an objective into a Plan. Implemented by
// core/generator.Generator.
type Planner interface {
	Decompose(ctx context.Context, objective string, completed []task.Result, modelClass model.ModelClass) (task.Plan, error)
}

// Verifier adversarially critiques a Plan. Implemented by
// core/verifier.Verifier.
type Verifier interface {
	Critique(ctx context.Context, objective string, plan task.Plan) verifier.Critique
}

// Reviser rewrites a flawed Plan given its critique. Implemented by
// core/reviser.Reviser.
type Reviser interface {
	Fix(ctx context.Context, objective string, plan task.Plan, critique verifier.Critique) task.Plan
}

// ToolExecutor dispatches a tool-kind Task. Implemented by
// core/toolexec.Executor.
type ToolExecutor interface {
	Execute(ctx context.Context, t task.Task) (any, error)
}

// Bindings are the pluggable module implementations a Node drives. They
// are carried unchanged across replan cycles and into spawned children.
type Bindings struct {
	Planner      Planner
	Verifier     Verifier
	Reviser      Reviser
	ToolExecutor ToolExecutor
}

// ChildResult is what a child node reports to its parent when it
// terminates, whether normally or by failure.
type ChildResult struct {
	TaskID    string
	NodeID    string
	Success   bool
	Completed []task.Result
	Reason    string
}

// SpawnRequest describes a child node a parent wants started.
type SpawnRequest struct {
	ParentID   string
	TaskID     string
	Objective  string
	Depth      int
	MaxDepth   int
	ProjectID  string
	ModelClass model.ModelClass
	Bindings   Bindings
	// OnDone is invoked exactly once, from the child's own actor
	// goroutine, when the child terminates.
	OnDone func(ChildResult)
}

// ChildSpawner creates and starts a child node. Implemented by the Node
// Supervisor (C7); returns the spawned node's id.
type ChildSpawner interface {
	Spawn(ctx context.Context, req SpawnRequest) (string, error)
}

// Sleeper abstracts backoff waits so tests can exercise retry counts
// without real delays.
type Sleeper func(context.Context, time.Duration)

// ContextSleep is the default Sleeper: sleeps for d or returns early on
// context cancellation.
func ContextSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// backoffDelay implements delay = min(1s * 2^n, 10s), the same schedule
// the Verifier uses for its own transport retries (spec'd independently
// for the Node's planner/verifier retry counters).
func backoffDelay(attempt int) time.Duration {
	d := time.Second
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= 10*time.Second {
			return 10 * time.Second
		}
	}
	return d
}

// Outcome is a Node's terminal result, returned by Run.
type Outcome struct {
	Success   bool
	Completed []task.Result
	Reason    string
}

type phaseDoneEvent struct {
	token    int
	phase    Phase
	plan     task.Plan
	critique verifier.Critique
	err      error
}

type retryEvent struct {
	token int
	phase Phase
}

type childDoneEvent struct {
	result ChildResult
}

// Config constructs a Node.
type Config struct {
	ID         string
	ParentID   string
	Objective  string
	Depth      int
	MaxDepth   int
	ProjectID  string
	ModelClass model.ModelClass
	Bindings   Bindings
	Spawner    ChildSpawner
	// OnDone is invoked from this node's own actor goroutine when it
	// terminates; nil for a root node with no parent to report to.
	OnDone  func(ChildResult)
	Sleeper Sleeper
}

// Node is the single-writer GVR state machine actor (C6).
type Node struct {
	id         string
	parentID   string
	depth      int
	maxDepth   int
	projectID  string
	modelClass model.ModelClass
	bindings   Bindings
	spawner    ChildSpawner
	onDone     func(ChildResult)
	sleeper    Sleeper

	mailbox chan any

	mu          sync.RWMutex
	objective   string
	status      Status
	activePhase Phase

	phaseToken         int
	plan               task.Plan
	pendingTasks       []task.Task
	completedTasks     []task.Result
	currentTask        *task.Task
	lastCritique       verifier.Critique
	plannerRetryCount  int
	verifierRetryCount int
}

// New constructs a Node ready to be driven by Run.
func New(cfg Config) *Node {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = ContextSleep
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}
	return &Node{
		id:         id,
		parentID:   cfg.ParentID,
		depth:      cfg.Depth,
		maxDepth:   maxDepth,
		projectID:  cfg.ProjectID,
		modelClass: cfg.ModelClass,
		bindings:   cfg.Bindings,
		spawner:    cfg.Spawner,
		onDone:     cfg.OnDone,
		sleeper:    sleeper,
		mailbox:    make(chan any, 32),
		objective:  cfg.Objective,
		status:     StatusInit,
	}
}

// ID returns the node's stable identifier.
func (n *Node) ID() string { return n.id }

// ParentID returns the parent node's identifier, or "" for a root.
func (n *Node) ParentID() string { return n.parentID }

// Depth returns the node's delegation depth.
func (n *Node) Depth() int { return n.depth }

// ProjectID returns the project this node's objective is associated with.
func (n *Node) ProjectID() string { return n.projectID }

// Status returns the node's current lifecycle state.
func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// Objective returns the node's current (possibly replanned) objective.
func (n *Node) Objective() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.objective
}

func (n *Node) setStatus(s Status) {
	n.mu.Lock()
	n.status = s
	n.mu.Unlock()
}

func (n *Node) setObjective(o string) {
	n.mu.Lock()
	n.objective = o
	n.mu.Unlock()
}

func (n *Node) objectiveUnlocked() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.objective
}

// Run drives the node to completion, blocking the calling goroutine. Async
// phases and child delegation are performed by spawned workers that post
// tagged results back onto the node's own mailbox; Run is the node's
// single-threaded message loop and is the only place state mutates.
func (n *Node) Run(ctx context.Context) Outcome {
	n.enterPlanning(ctx)
	for {
		select {
		case <-ctx.Done():
			n.setStatus(StatusFailed)
			reason := ctx.Err().Error()
			if n.onDone != nil {
				n.onDone(ChildResult{NodeID: n.id, Success: false, Completed: n.completedTasks, Reason: reason})
			}
			return Outcome{Success: false, Reason: reason, Completed: n.completedTasks}
		case msg := <-n.mailbox:
			n.handle(ctx, msg)
		}
		switch n.Status() {
		case StatusDone:
			return Outcome{Success: true, Completed: n.completedTasks}
		case StatusFailed:
			return Outcome{Success: false, Completed: n.completedTasks}
		}
	}
}

func (n *Node) handle(ctx context.Context, msg any) {
	switch e := msg.(type) {
	case phaseDoneEvent:
		if e.token != n.phaseToken || e.phase != n.activePhase {
			return // stale result for a superseded phase; discard
		}
		switch e.phase {
		case PhaseGenerate:
			n.onGenerateDone(ctx, e)
		case PhaseVerify:
			n.onVerifyDone(ctx, e)
		case PhaseRevise:
			n.onReviseDone(ctx, e)
		}
	case retryEvent:
		if e.token != n.phaseToken {
			return
		}
		switch e.phase {
		case PhaseGenerate:
			n.enterPlanning(ctx)
		case PhaseVerify:
			n.enterRevising(ctx)
		}
	case childDoneEvent:
		n.onChildDone(ctx, e.result)
	}
}

func (n *Node) enterPlanning(ctx context.Context) {
	n.phaseToken++
	token := n.phaseToken
	n.activePhase = PhaseGenerate
	n.setStatus(StatusPlanning)
	objective := n.objectiveUnlocked()
	completed := append([]task.Result(nil), n.completedTasks...)
	go func() {
		plan, err := n.bindings.Planner.Decompose(ctx, objective, completed, n.modelClass)
		select {
		case n.mailbox <- phaseDoneEvent{token: token, phase: PhaseGenerate, plan: plan, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (n *Node) onGenerateDone(ctx context.Context, e phaseDoneEvent) {
	if e.err != nil {
		n.plannerRetryCount++
		n.scheduleRetry(ctx, PhaseGenerate, n.plannerRetryCount-1)
		return
	}
	n.plannerRetryCount = 0
	n.plan = e.plan
	n.pendingTasks = append([]task.Task(nil), e.plan.Tasks...)
	n.enterVerifying(ctx)
}

func (n *Node) enterVerifying(ctx context.Context) {
	n.phaseToken++
	token := n.phaseToken
	n.activePhase = PhaseVerify
	n.setStatus(StatusVerifying)
	objective := n.objectiveUnlocked()
	plan := n.plan
	go func() {
		c := n.bindings.Verifier.Critique(ctx, objective, plan)
		select {
		case n.mailbox <- phaseDoneEvent{token: token, phase: PhaseVerify, critique: c}:
		case <-ctx.Done():
		}
	}()
}

func (n *Node) onVerifyDone(ctx context.Context, e phaseDoneEvent) {
	if e.critique.Approved {
		n.verifierRetryCount = 0
		n.setStatus(StatusExecuting)
		n.executeNext(ctx)
		return
	}
	n.verifierRetryCount++
	n.lastCritique = e.critique
	n.scheduleRetry(ctx, PhaseVerify, n.verifierRetryCount-1)
}

func (n *Node) enterRevising(ctx context.Context) {
	n.phaseToken++
	token := n.phaseToken
	n.activePhase = PhaseRevise
	n.setStatus(StatusRevising)
	objective := n.objectiveUnlocked()
	plan := n.plan
	critique := n.lastCritique
	go func() {
		revised := n.bindings.Reviser.Fix(ctx, objective, plan, critique)
		select {
		case n.mailbox <- phaseDoneEvent{token: token, phase: PhaseRevise, plan: revised}:
		case <-ctx.Done():
		}
	}()
}

func (n *Node) onReviseDone(ctx context.Context, e phaseDoneEvent) {
	n.plan = e.plan
	n.pendingTasks = append([]task.Task(nil), e.plan.Tasks...)
	n.enterVerifying(ctx)
}

// scheduleRetry waits out the backoff for attempt, then posts a retryEvent
// without advancing phaseToken — the wait is not a new phase, just a
// delay. A generate retry re-enters planning; a verify retry (a flawed
// verdict) enters revising.
func (n *Node) scheduleRetry(ctx context.Context, phase Phase, attempt int) {
	n.setStatus(StatusReplanning)
	token := n.phaseToken
	delay := backoffDelay(attempt)
	go func() {
		n.sleeper(ctx, delay)
		select {
		case n.mailbox <- retryEvent{token: token, phase: phase}:
		case <-ctx.Done():
		}
	}()
}

// executeNext drains pendingTasks strictly in order. It returns as soon as
// it dispatches a delegate task (waiting for the child's async result) or
// once the queue empties (terminating the node).
func (n *Node) executeNext(ctx context.Context) {
	for len(n.pendingTasks) > 0 {
		t := n.pendingTasks[0]
		switch t.Kind {
		case task.KindDelegate:
			n.pendingTasks = n.pendingTasks[1:]
			n.currentTask = &t
			if n.depth >= n.maxDepth {
				n.replan(ctx, t.ID, ReasonMaxDepthReached)
				return
			}
			if n.spawner == nil {
				n.replan(ctx, t.ID, ReasonDelegationFailed)
				return
			}
			taskID := t.ID
			_, err := n.spawner.Spawn(ctx, SpawnRequest{
				ParentID:   n.id,
				TaskID:     taskID,
				Objective:  t.Objective,
				Depth:      n.depth + 1,
				MaxDepth:   n.maxDepth,
				ProjectID:  n.projectID,
				ModelClass: n.modelClass,
				Bindings:   n.bindings,
				OnDone: func(r ChildResult) {
					r.TaskID = taskID
					select {
					case n.mailbox <- childDoneEvent{result: r}:
					case <-ctx.Done():
					}
				},
			})
			if err != nil {
				n.replan(ctx, taskID, ReasonDelegationFailed)
				return
			}
			return
		case task.KindTool:
			result, err := n.bindings.ToolExecutor.Execute(ctx, t)
			if err != nil {
				n.replan(ctx, t.ID, err.Error())
				return
			}
			n.completedTasks = append(n.completedTasks, task.Result{TaskID: t.ID, Value: result})
			n.pendingTasks = n.pendingTasks[1:]
		default:
			n.replan(ctx, t.ID, fmt.Sprintf("invalid task kind %q", t.Kind))
			return
		}
	}
	n.currentTask = nil
	n.setStatus(StatusDone)
	if n.onDone != nil {
		n.onDone(ChildResult{NodeID: n.id, Success: true, Completed: n.completedTasks})
	}
}

func (n *Node) onChildDone(ctx context.Context, r ChildResult) {
	n.currentTask = nil
	if r.Success {
		n.completedTasks = append(n.completedTasks, task.Result{TaskID: r.TaskID, Value: r.Completed})
		n.setStatus(StatusExecuting)
		n.executeNext(ctx)
		return
	}
	n.replan(ctx, r.TaskID, r.Reason)
}

// replan synthesizes a new objective narrating the original intent, the
// work completed so far, and the failure that triggered replanning, then
// re-enters planning. The active phase is cancelled by advancing
// phaseToken so any in-flight worker's eventual result is discarded.
func (n *Node) replan(ctx context.Context, failedTaskID, reason string) {
	n.setObjective(narrative(n.objectiveUnlocked(), n.completedTasks, failedTaskID, reason))
	n.plan = task.Plan{}
	n.pendingTasks = nil
	n.phaseToken++
	n.activePhase = PhaseNone
	n.setStatus(StatusPlanning)
	n.enterPlanning(ctx)
}

func narrative(original string, completed []task.Result, failedTaskID, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original objective: %s\n", original)
	if len(completed) > 0 {
		b.WriteString("Completed so far:\n")
		for _, c := range completed {
			fmt.Fprintf(&b, "- %s\n", c.TaskID)
		}
	}
	fmt.Fprintf(&b, "Task %q failed because %s. Devise a new plan that accounts for this failure.", failedTaskID, reason)
	return b.String()
}
