package reviewqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeReviewer struct {
	mu        sync.Mutex
	inFlight  int32
	maxInFlight int32
	order     []string
	failFor   map[string]error
}

func (f *fakeReviewer) Review(_ context.Context, item Item) error {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	f.order = append(f.order, item.GoalID)
	f.mu.Unlock()

	if err, ok := f.failFor[item.GoalID]; ok {
		return err
	}
	return nil
}

func TestQueueSerializesReviews(t *testing.T) {
	reviewer := &fakeReviewer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(ctx, reviewer)
	for i := 0; i < 10; i++ {
		q.Enqueue(Item{GoalID: string(rune('a' + i))})
	}

	require.Eventually(t, func() bool {
		reviewer.mu.Lock()
		defer reviewer.mu.Unlock()
		return len(reviewer.order) == 10
	}, time.Second, time.Millisecond)

	require.EqualValues(t, 1, atomic.LoadInt32(&reviewer.maxInFlight))
}

func TestQueueContinuesAfterReviewerFailure(t *testing.T) {
	reviewer := &fakeReviewer{failFor: map[string]error{"bad": errors.New("boom")}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(ctx, reviewer)
	q.Enqueue(Item{GoalID: "bad"})
	q.Enqueue(Item{GoalID: "good"})

	require.Eventually(t, func() bool {
		reviewer.mu.Lock()
		defer reviewer.mu.Unlock()
		return len(reviewer.order) == 2
	}, time.Second, time.Millisecond)
}

func TestQueueStopsOnContextCancel(t *testing.T) {
	reviewer := &fakeReviewer{}
	ctx, cancel := context.WithCancel(context.Background())
	q := New(ctx, reviewer)
	cancel()

	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("queue did not stop after context cancellation")
	}
}
