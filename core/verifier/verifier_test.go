package verifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aletheialabs/hplan-core/core/task"
	"github.com/aletheialabs/hplan-core/runtime/agent/model"
)

type sequenceClient struct {
	calls     int
	responses []*model.Response
	errs      []error
}

func (s *sequenceClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	i := s.calls
	s.calls++
	var resp *model.Response
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return resp, err
}

func noSleep(context.Context, time.Duration) {}

func TestCritiqueApprovedOnFirstTry(t *testing.T) {
	client := &sequenceClient{responses: []*model.Response{
		{Text: `{"status":"approved","reason":"looks fine"}`},
	}}
	v := New(client, WithSleeper(noSleep))

	c := v.Critique(context.Background(), "obj", task.Plan{})
	require.True(t, c.Approved)
	require.Equal(t, "looks fine", c.Reason)
	require.Equal(t, 1, client.calls)
}

func TestCritiqueFlawedVerdict(t *testing.T) {
	client := &sequenceClient{responses: []*model.Response{
		{Text: `{"status":"flawed","critique":"missing dependency ordering"}`},
	}}
	v := New(client, WithSleeper(noSleep))

	c := v.Critique(context.Background(), "obj", task.Plan{})
	require.False(t, c.Approved)
	require.Equal(t, "missing dependency ordering", c.Feedback)
}

func TestCritiqueParseFailureYieldsFlawedWithTruncatedRaw(t *testing.T) {
	client := &sequenceClient{responses: []*model.Response{
		{Text: "not json at all"},
	}}
	v := New(client, WithSleeper(noSleep))

	c := v.Critique(context.Background(), "obj", task.Plan{})
	require.False(t, c.Approved)
	require.Equal(t, "not json at all", c.Feedback)
}

// TestCritiqueTransientFailureThenApproval mirrors scenario D: four
// transport failures followed by approval on the fifth call. It asserts the
// backoff schedule sums to 1+2+4+8 = 15 seconds without actually sleeping.
func TestCritiqueTransientFailureThenApproval(t *testing.T) {
	boom := errors.New("transport error")
	client := &sequenceClient{
		errs: []error{boom, boom, boom, boom},
		responses: []*model.Response{
			nil, nil, nil, nil,
			{Text: `{"status":"approved","reason":"ok"}`},
		},
	}

	var total time.Duration
	v := New(client, WithSleeper(func(_ context.Context, d time.Duration) {
		total += d
	}))

	c := v.Critique(context.Background(), "obj", task.Plan{})
	require.True(t, c.Approved)
	require.Equal(t, 5, client.calls)
	require.Equal(t, 15*time.Second, total)
}

func TestCritiqueAllRetriesExhaustedYieldsFlawed(t *testing.T) {
	boom := errors.New("still down")
	client := &sequenceClient{errs: []error{boom, boom, boom, boom, boom}}
	v := New(client, WithSleeper(noSleep))

	c := v.Critique(context.Background(), "obj", task.Plan{})
	require.False(t, c.Approved)
	require.Contains(t, c.Feedback, "Verifier failed")
	require.Contains(t, c.Feedback, "still down")
	require.Equal(t, 5, client.calls)
}

func TestBackoffDelayCapsAtCeiling(t *testing.T) {
	cfg := Config{}.withDefaults()
	require.Equal(t, time.Second, cfg.backoffDelay(0))
	require.Equal(t, 2*time.Second, cfg.backoffDelay(1))
	require.Equal(t, 4*time.Second, cfg.backoffDelay(2))
	require.Equal(t, 8*time.Second, cfg.backoffDelay(3))
	require.Equal(t, 10*time.Second, cfg.backoffDelay(4))
}
