package aletheia

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sandboxinmem "github.com/aletheialabs/hplan-core/core/sandbox/inmem"
	"github.com/aletheialabs/hplan-core/runtime/agent/model"
)

type fanOutClient struct{}

func (fanOutClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return &model.Response{Text: `{"plans":["A","B","C"]}`}, nil
}

// scenarioEVerifier reproduces spec.md §8 Scenario E: A approves
// immediately, B is rejected twice then approved, C blocks until its
// context is cancelled (simulating a path that times out).
type scenarioEVerifier struct {
	bAttempts int
}

func (v *scenarioEVerifier) Critique(ctx context.Context, _, planText string, _ []string) Critique {
	switch {
	case planText == "A":
		return Critique{Approved: true}
	case strings.HasPrefix(planText, "B"):
		v.bAttempts++
		if v.bAttempts >= 3 {
			return Critique{Approved: true}
		}
		return Critique{Approved: false, Feedback: "needs work"}
	case strings.HasPrefix(planText, "C"):
		<-ctx.Done()
		return Critique{Approved: false, Feedback: "context cancelled"}
	default:
		return Critique{Approved: false, Feedback: "unknown plan"}
	}
}

type appendReviser struct{}

func (appendReviser) Fix(_ context.Context, _, planText string, _ Critique) string {
	return planText + "+"
}

type pickSelector struct{ pick string }

func (s pickSelector) Select(_ context.Context, _ string, candidates []string) (string, error) {
	for _, c := range candidates {
		if c == s.pick {
			return c, nil
		}
	}
	if len(candidates) > 0 {
		return candidates[0], nil
	}
	return "", errors.New("no candidates")
}

func TestRunFanOutSelectsWinner(t *testing.T) {
	sb := sandboxinmem.New()
	sb.Seed("base", map[string]string{"a.txt": "x"})

	verifier := &scenarioEVerifier{}
	p := New(fanOutClient{}, sb, verifier, appendReviser{}, pickSelector{pick: "B++"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	got, err := p.Run(ctx, "deploy service", "base", Options{N: 3, MaxIterations: 3})
	require.NoError(t, err)
	require.Equal(t, "B++", got)
}

func TestRunAllPathsFailedReturnsError(t *testing.T) {
	sb := sandboxinmem.New()
	alwaysFlawed := fakeVerifierFunc(func(_ context.Context, _, _ string, _ []string) Critique {
		return Critique{Approved: false, Feedback: "never good enough"}
	})
	p := New(fanOutClient{}, sb, alwaysFlawed, appendReviser{}, pickSelector{})

	_, err := p.Run(context.Background(), "deploy service", "base", Options{N: 3, MaxIterations: 1})
	require.ErrorIs(t, err, ErrAllPathsFailed)
}

func TestRunWithNEqualsOneSkipsSelector(t *testing.T) {
	sb := sandboxinmem.New()
	approveAll := fakeVerifierFunc(func(context.Context, string, string, []string) Critique {
		return Critique{Approved: true}
	})
	selector := &countingSelector{}
	p := New(singlePlanClient{}, sb, approveAll, appendReviser{}, selector)

	got, err := p.Run(context.Background(), "deploy service", "base", Options{N: 1})
	require.NoError(t, err)
	require.Equal(t, "solo-plan", got)
	require.Zero(t, selector.calls)
}

type fakeVerifierFunc func(ctx context.Context, objective, planText string, files []string) Critique

func (f fakeVerifierFunc) Critique(ctx context.Context, objective, planText string, files []string) Critique {
	return f(ctx, objective, planText, files)
}

type countingSelector struct{ calls int }

func (s *countingSelector) Select(context.Context, string, []string) (string, error) {
	s.calls++
	return "", nil
}

type singlePlanClient struct{}

func (singlePlanClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return &model.Response{Text: `{"plans":["solo-plan"]}`}, nil
}
