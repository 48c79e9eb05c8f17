// Package aletheia implements the Aletheia Planner (C8): a fan-out
// planning service, independent of the Node tree, that generates N
// candidate plans, concurrently refines each against a sandboxed
// fact-checking verifier, and selects a winner.
package aletheia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/aletheialabs/hplan-core/core/sandbox"
	"github.com/aletheialabs/hplan-core/runtime/agent/model"
)

// ErrAllPathsFailed is returned when every candidate path crashed, timed
// out, or never reached approval.
var ErrAllPathsFailed = errors.New("aletheia: all planning paths failed verification")

const (
	defaultN             = 3
	defaultMaxIterations = 3
	hardMaxIterations    = 6
	pathTimeout          = 10 * time.Minute
	maxListedFiles       = 60
)

// Critique is a path verifier's structured verdict.
type Critique struct {
	Approved bool
	Feedback string
}

// PathVerifier adversarially critiques one candidate plan's text, given
// the objective and a listing of workspace files visible through the
// sandbox overlay.
type PathVerifier interface {
	Critique(ctx context.Context, objective, planText string, files []string) Critique
}

// PathReviser rewrites a candidate plan's text given its critique.
type PathReviser interface {
	Fix(ctx context.Context, objective, planText string, critique Critique) string
}

// Selector picks the single best plan among a set of refined candidates.
type Selector interface {
	Select(ctx context.Context, objective string, candidates []string) (string, error)
}

// Options configures one Run.
type Options struct {
	// N is the number of candidate plans requested. Defaults to 3.
	N int
	// MaxIterations bounds refinement rounds per path. Defaults to 3,
	// hard-capped at 6 regardless of the requested value.
	MaxIterations int
}

func (o Options) withDefaults() Options {
	if o.N <= 0 {
		o.N = defaultN
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultMaxIterations
	}
	if o.MaxIterations > hardMaxIterations {
		o.MaxIterations = hardMaxIterations
	}
	return o
}

// Planner runs the Aletheia fan-out planning algorithm.
type Planner struct {
	client   model.Client
	sandbox  sandbox.Manager
	verifier PathVerifier
	reviser  PathReviser
	selector Selector
}

// New constructs a Planner from its collaborators.
func New(client model.Client, sb sandbox.Manager, verifier PathVerifier, reviser PathReviser, selector Selector) *Planner {
	return &Planner{client: client, sandbox: sb, verifier: verifier, reviser: reviser, selector: selector}
}

type pathOutcome struct {
	planText string
	approved bool
	iterations int
}

// Run generates N candidate plans for objective, refines each
// concurrently against the sandbox overlay branched from handle, and
// returns the Selector's chosen plan text.
func (p *Planner) Run(ctx context.Context, objective, handle string, opts Options) (string, error) {
	opts = opts.withDefaults()

	plansText, err := p.generatePlans(ctx, objective, opts.N)
	if err != nil {
		return "", fmt.Errorf("aletheia: %w", err)
	}

	results := make([]*pathOutcome, len(plansText))
	var wg sync.WaitGroup
	for i, planText := range plansText {
		i, planText := i, planText
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.refinePath(ctx, objective, handle, planText, opts.MaxIterations)
		}()
	}
	wg.Wait()

	var surviving []string
	for _, r := range results {
		if r != nil && r.approved {
			surviving = append(surviving, r.planText)
		}
	}
	if len(surviving) == 0 {
		return "", ErrAllPathsFailed
	}
	if len(surviving) == 1 && opts.N == 1 {
		return surviving[0], nil
	}

	chosen, err := p.selector.Select(ctx, objective, surviving)
	if err != nil || strings.TrimSpace(chosen) == "" {
		return surviving[0], nil
	}
	return chosen, nil
}

// refinePath drives one candidate plan through bounded verify/revise
// iterations within a soft per-path timeout. It never returns an error:
// a crash or timeout simply yields an unapproved outcome that Run drops.
func (p *Planner) refinePath(ctx context.Context, objective, handle, planText string, maxIterations int) *pathOutcome {
	defer func() { recover() }() // a crashing path is dropped, not fatal to the fan-out

	pctx, cancel := context.WithTimeout(ctx, pathTimeout)
	defer cancel()

	overlay, err := p.sandbox.Branch(pctx, handle)
	if err != nil {
		return &pathOutcome{planText: planText, approved: false}
	}
	defer p.sandbox.Discard(context.Background(), overlay)

	files, _ := p.sandbox.ListFiles(pctx, overlay)
	if len(files) > maxListedFiles {
		files = files[:maxListedFiles]
	}

	current := planText
	for iter := 0; iter < maxIterations; iter++ {
		if pctx.Err() != nil {
			return &pathOutcome{planText: current, approved: false, iterations: iter}
		}
		c := p.verifier.Critique(pctx, objective, current, files)
		if c.Approved {
			return &pathOutcome{planText: current, approved: true, iterations: iter + 1}
		}
		current = p.reviser.Fix(pctx, objective, current, c)
	}
	return &pathOutcome{planText: current, approved: false, iterations: maxIterations}
}

type plansEnvelope struct {
	Plans []string `json:"plans"`
}

var numberedLine = regexp.MustCompile(`(?m)^\s*\d+[.)]\s*(.+)$`)

// generatePlans asks the model for N distinct plans as a {"plans":[...]}
// envelope, tolerating direct JSON, a fenced JSON block, or — failing
// both — a numbered-list rendering of the same content. Results are
// deduped and truncated to N.
func (p *Planner) generatePlans(ctx context.Context, objective string, n int) ([]string, error) {
	req := &model.Request{
		ModelClass: model.ModelClassPlanner,
		Messages: []model.Message{
			{Role: model.ConversationRoleSystem, Text: fanOutSystemPrompt(n)},
			{Role: model.ConversationRoleUser, Text: fmt.Sprintf("Objective: %s", objective)},
		},
		MaxTokens: 4096,
	}
	resp, err := p.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generator call failed: %w", err)
	}

	plans := parsePlansTolerant(resp.Text)
	plans = dedupe(plans)
	if len(plans) == 0 {
		return nil, errors.New("no plans decoded from model output")
	}
	if len(plans) > n {
		plans = plans[:n]
	}
	return plans, nil
}

func fanOutSystemPrompt(n int) string {
	return fmt.Sprintf(`You are a planning assistant. Produce %d distinct, substantively different
candidate plans for the given objective. Respond with a single JSON object:
{"plans":["plan 1 text", "plan 2 text", ...]}. Respond with the JSON object
only, with no prose and no Markdown code fences.`, n)
}

func parsePlansTolerant(raw string) []string {
	var env plansEnvelope
	if json.Unmarshal([]byte(raw), &env) == nil && len(env.Plans) > 0 {
		return env.Plans
	}
	if m := fencedJSONBlock.FindStringSubmatch(raw); m != nil {
		var env2 plansEnvelope
		if json.Unmarshal([]byte(m[1]), &env2) == nil && len(env2.Plans) > 0 {
			return env2.Plans
		}
	}
	if span, ok := embeddedObjectSpan(raw); ok {
		var env3 plansEnvelope
		if json.Unmarshal([]byte(span), &env3) == nil && len(env3.Plans) > 0 {
			return env3.Plans
		}
	}
	var out []string
	for _, m := range numberedLine.FindAllStringSubmatch(raw, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

func embeddedObjectSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
