// Package verifier implements the Verifier (C4): it adversarially critiques
// a plan and retries transport failures with exponential backoff.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aletheialabs/hplan-core/core/planparse"
	"github.com/aletheialabs/hplan-core/core/task"
	"github.com/aletheialabs/hplan-core/runtime/agent/model"
)

// Critique is the Verifier's structured verdict on a Plan.
type Critique struct {
	// Approved reports whether the plan passed adversarial review.
	Approved bool
	// Reason holds the approval rationale when Approved is true.
	Reason string
	// Feedback holds the critique text when Approved is false.
	Feedback string
}

// Config bounds the Verifier's retry behavior. The zero value yields the
// spec's stricter defaults (4 retries, 1s initial backoff, 10s ceiling).
type Config struct {
	// MaxRetries caps the number of transport-error retries. Zero means
	// use the default of 4.
	MaxRetries int
	// InitialBackoff is the delay before the first retry. Zero means use
	// the default of 1 second.
	InitialBackoff time.Duration
	// BackoffCeiling caps the delay between retries. Zero means use the
	// default of 10 seconds.
	BackoffCeiling time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 4
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.BackoffCeiling <= 0 {
		c.BackoffCeiling = 10 * time.Second
	}
	return c
}

// backoffDelay implements delay = min(initial * 2^n, ceiling).
func (c Config) backoffDelay(attempt int) time.Duration {
	d := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.BackoffCeiling {
			return c.BackoffCeiling
		}
	}
	return d
}

// Sleeper abstracts time.Sleep so tests can run the retry loop without
// real delays.
type Sleeper func(context.Context, time.Duration)

// ContextSleep is the default Sleeper: it sleeps for d or returns early on
// context cancellation.
func ContextSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Verifier adversarially critiques plans, retrying transport failures.
type Verifier struct {
	client  model.Client
	cfg     Config
	sleeper Sleeper
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithConfig overrides the retry configuration.
func WithConfig(cfg Config) Option {
	return func(v *Verifier) { v.cfg = cfg.withDefaults() }
}

// WithSleeper overrides the backoff sleep function; used by tests to skip
// real delays while still exercising the retry count.
func WithSleeper(s Sleeper) Option {
	return func(v *Verifier) { v.sleeper = s }
}

// New constructs a Verifier backed by the given model client.
func New(client model.Client, opts ...Option) *Verifier {
	v := &Verifier{client: client, cfg: Config{}.withDefaults(), sleeper: ContextSleep}
	for _, o := range opts {
		if o != nil {
			o(v)
		}
	}
	return v
}

type verdict struct {
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	Critique string `json:"critique"`
}

// Critique emits an adversarial prompt over plan and objective, retrying
// transport failures up to cfg.MaxRetries times with exponential backoff.
// If every retry fails, it returns a flawed Critique ("Verifier failed: ...")
// rather than an error, matching spec.md §4.4: the Verifier never returns a
// Go error to its caller — failure is represented within the Critique.
func (v *Verifier) Critique(ctx context.Context, objective string, plan task.Plan) Critique {
	req := &model.Request{
		ModelClass: model.ModelClassPlanner,
		Messages: []model.Message{
			{Role: model.ConversationRoleSystem, Text: systemPrompt},
			{Role: model.ConversationRoleUser, Text: userPrompt(objective, plan)},
		},
		MaxTokens: 2048,
	}

	var lastErr error
	for attempt := 0; attempt <= v.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			v.sleeper(ctx, v.cfg.backoffDelay(attempt-1))
		}
		resp, err := v.client.Complete(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		return parseVerdict(resp.Text)
	}

	return Critique{Approved: false, Feedback: fmt.Sprintf("Verifier failed: %s", lastErr)}
}

func parseVerdict(raw string) Critique {
	var vd verdict
	if err := json.Unmarshal([]byte(raw), &vd); err != nil {
		return Critique{Approved: false, Feedback: planparse.Truncate(raw, 500)}
	}
	switch vd.Status {
	case "approved":
		return Critique{Approved: true, Reason: vd.Reason}
	case "flawed":
		return Critique{Approved: false, Feedback: vd.Critique}
	default:
		return Critique{Approved: false, Feedback: planparse.Truncate(raw, 500)}
	}
}

const systemPrompt = `You are an adversarial plan verifier. Given an objective and a proposed
plan, construct both a success-argument (why this plan would achieve the
objective) and a failure-argument (why it might not), then weigh them.
Unexpanded "delegate" tasks are valid placeholders; do not reject a plan
merely for containing them. Focus your critique on dependency ordering and
whether blockers are resolved before the steps that need them.
Respond with a single JSON object: {"status":"approved","reason":"..."} or
{"status":"flawed","critique":"..."}. Respond with the JSON object only.`

func userPrompt(objective string, plan task.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\nPlan:\n", objective)
	for _, t := range plan.Tasks {
		fmt.Fprintf(&b, "- [%s] %s", t.Kind, t.Objective)
		if t.Kind == task.KindTool {
			fmt.Fprintf(&b, " (tool=%s args=%v)", t.Tool, t.Args)
		}
		b.WriteString("\n")
	}
	return b.String()
}
