// Package reviewqueue implements the Review Queue (C9): a single-consumer
// queue that serializes post-completion reviewer invocations so a burst of
// goal completions never floods the reviewer interface.
package reviewqueue

import (
	"context"
	"sync"

	"github.com/aletheialabs/hplan-core/runtime/agent/telemetry"
)

// Item is one unit of review work, enqueued fire-and-forget.
type Item struct {
	GoalID  string
	Summary string
}

// Reviewer performs one post-completion review. A failure is logged by
// the queue and does not halt subsequent items.
type Reviewer interface {
	Review(ctx context.Context, item Item) error
}

// Queue serializes calls to a Reviewer: at most one review is in flight
// at a time, and enqueuing is non-blocking up to the queue's buffer.
type Queue struct {
	reviewer Reviewer
	logger   telemetry.Logger

	items chan Item

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger overrides the queue's logger.
func WithLogger(l telemetry.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithBuffer sets the channel buffer size backing Enqueue. Defaults to 64.
func WithBuffer(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.items = make(chan Item, n)
		}
	}
}

// New constructs a Queue and starts its single consumer goroutine, bound
// to ctx: when ctx is cancelled the consumer drains no further items and
// its run loop returns.
func New(ctx context.Context, reviewer Reviewer, opts ...Option) *Queue {
	q := &Queue{
		reviewer: reviewer,
		logger:   telemetry.NoopLogger{},
		items:    make(chan Item, 64),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		if o != nil {
			o(q)
		}
	}
	go q.run(ctx)
	return q
}

// Enqueue submits item for review. It is fire-and-forget: the call
// returns once item is buffered, not once it has been reviewed. Enqueue
// is a no-op once the queue has stopped.
func (q *Queue) Enqueue(item Item) {
	select {
	case q.items <- item:
	case <-q.done:
	}
}

// run is the queue's single consumer: it processes items strictly one at
// a time, so at most one Reviewer.Review call is ever in flight.
func (q *Queue) run(ctx context.Context) {
	defer q.closeOnce.Do(func() { close(q.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.items:
			if err := q.reviewer.Review(ctx, item); err != nil {
				q.logger.Warn(ctx, "review failed", "goal_id", item.GoalID, "reason", err.Error())
			}
		}
	}
}

// Done returns a channel closed once the queue's consumer has stopped
// (its bound context was cancelled).
func (q *Queue) Done() <-chan struct{} {
	return q.done
}
