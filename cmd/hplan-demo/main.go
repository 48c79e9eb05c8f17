// Command hplan-demo wires the in-memory reference implementations of the
// store, tool registry and engine (the sandbox is not used here) to
// a deterministic fake model.Client and drives a single root objective
// through the GVR state machine end to end (spec.md §8 Scenario A). It is
// a runnable illustration of how the interfaces in spec.md §6 compose,
// not part of the core's tested contract surface (SPEC_FULL.md §12).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aletheialabs/hplan-core/core/generator"
	"github.com/aletheialabs/hplan-core/core/node"
	"github.com/aletheialabs/hplan-core/core/reviser"
	"github.com/aletheialabs/hplan-core/core/reviewqueue"
	"github.com/aletheialabs/hplan-core/core/store"
	storeinmem "github.com/aletheialabs/hplan-core/core/store/inmem"
	"github.com/aletheialabs/hplan-core/core/supervisor"
	"github.com/aletheialabs/hplan-core/core/taskreport"
	"github.com/aletheialabs/hplan-core/core/toolexec"
	"github.com/aletheialabs/hplan-core/core/toolregistry"
	"github.com/aletheialabs/hplan-core/core/verifier"
	inmemengine "github.com/aletheialabs/hplan-core/runtime/agent/engine/inmem"
	"github.com/aletheialabs/hplan-core/runtime/agent/hooks"
	"github.com/aletheialabs/hplan-core/runtime/agent/model"
	"github.com/aletheialabs/hplan-core/runtime/agent/telemetry"
	"github.com/aletheialabs/hplan-core/runtime/agent/tools"
)

// scenarioAClient is a deterministic fake model.Client reproducing
// spec.md §8 Scenario A: the Generator emits one tool task, and the
// Verifier approves it unconditionally. A real deployment supplies an
// LLM-backed model.Client instead; this module never talks to a
// provider directly (spec.md §1 Non-goals).
type scenarioAClient struct{}

func (scenarioAClient) Complete(_ context.Context, req *model.Request) (*model.Response, error) {
	for _, m := range req.Messages {
		if m.Role != model.ConversationRoleSystem {
			continue
		}
		if strings.Contains(m.Text, "adversarial plan verifier") {
			return &model.Response{Text: `{"status":"approved","reason":"single concrete step, nothing to check"}`}, nil
		}
	}
	return &model.Response{Text: `[{"id":"tool_1","type":"tool","objective":"echo objective","tool":"task_report","args":{"completed":"finish objective"}}]`}, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	client := scenarioAClient{}
	gen := generator.New(client)
	ver := verifier.New(client)
	rev := reviser.New(client)

	registry := toolregistry.New()
	registry.Register(tools.ToolSpec{Name: "task_report", Description: "records the final outcome"}, func(_ context.Context, args map[string]any) (any, error) {
		return map[string]any{"task": "tool_1", "completed": args["completed"]}, nil
	})
	executor := toolexec.New(registry, toolexec.WithLogger(stdoutLogger{}))

	eng := inmemengine.New()
	sup := supervisor.New(supervisor.WithEngine(eng), supervisor.WithLogger(stdoutLogger{}))

	goalStore := storeinmem.New()
	goal, err := goalStore.CreateGoal(ctx, store.Goal{ProjectID: "demo-project", Objective: "finish objective"})
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}

	bus := hooks.NewBus()
	sub, err := bus.Register(hooks.SubscriberFunc(func(_ context.Context, e hooks.Event) error {
		fmt.Printf("event: %s goal=%s detail=%s\n", e.Type, e.NodeID, e.Detail)
		return nil
	}))
	if err != nil {
		return err
	}
	defer sub.Close()

	reviewer := reviewqueue.New(ctx, loggingReviewer{}, reviewqueue.WithLogger(stdoutLogger{}))

	root := node.New(node.Config{
		Objective:  goal.Objective,
		MaxDepth:   5,
		ProjectID:  goal.ProjectID,
		ModelClass: model.ModelClassDefault,
		Spawner:    sup,
		Bindings: node.Bindings{
			Planner:      gen,
			Verifier:     ver,
			Reviser:      rev,
			ToolExecutor: executor,
		},
	})

	outcome := root.Run(ctx)

	reporter := taskreport.New(goalStore, taskreport.WithBus(bus), taskreport.WithLogger(stdoutLogger{}))
	submission := taskreport.Submission{GoalID: goal.ID, Outcome: taskreport.OutcomeFailure, Error: "node did not succeed"}
	if outcome.Success {
		submission = taskreport.Submission{
			GoalID:  goal.ID,
			Outcome: taskreport.OutcomeSuccess,
			Summary: fmt.Sprintf("completed %d task(s)", len(outcome.Completed)),
		}
	}
	if err := reporter.Submit(ctx, submission); err != nil {
		return fmt.Errorf("submit task report: %w", err)
	}

	reviewer.Enqueue(reviewqueue.Item{GoalID: goal.ID, Summary: submission.Summary})

	final, err := goalStore.Get(ctx, goal.ID)
	if err != nil {
		return err
	}
	return printResult(outcome, final)
}

func printResult(outcome node.Outcome, goal store.Goal) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"node_success":    outcome.Success,
		"completed_tasks": outcome.Completed,
		"goal_status":     goal.Status,
		"goal_metadata":   goal.Metadata,
	})
}

type loggingReviewer struct{}

func (loggingReviewer) Review(_ context.Context, item reviewqueue.Item) error {
	fmt.Printf("reviewing goal %s: %s\n", item.GoalID, item.Summary)
	return nil
}

type stdoutLogger struct{}

func (stdoutLogger) Debug(_ context.Context, msg string, kv ...any) { logLine("DEBUG", msg, kv) }
func (stdoutLogger) Info(_ context.Context, msg string, kv ...any)  { logLine("INFO", msg, kv) }
func (stdoutLogger) Warn(_ context.Context, msg string, kv ...any)  { logLine("WARN", msg, kv) }
func (stdoutLogger) Error(_ context.Context, msg string, kv ...any) { logLine("ERROR", msg, kv) }

var _ telemetry.Logger = stdoutLogger{}

func logLine(level, msg string, kv []any) {
	fmt.Printf("[%s] %s %v\n", level, msg, kv)
}
