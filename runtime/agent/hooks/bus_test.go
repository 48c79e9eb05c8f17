package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBusPublishFanOut(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	count := 0
	sub := SubscriberFunc(func(ctx context.Context, event Event) error {
		count++
		return nil
	})
	_, err := bus.Register(sub)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, NewNodeStateChangedEvent("node1", "verifying")))
	require.NoError(t, bus.Publish(ctx, NewChildSucceededEvent("node2", "node1", "done")))
	require.Equal(t, 2, count)
}

func TestBusRegisterNil(t *testing.T) {
	bus := NewBus()
	_, err := bus.Register(nil)
	require.Error(t, err)
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()
	count := 0
	sub := SubscriberFunc(func(ctx context.Context, event Event) error {
		count++
		return nil
	})
	subscription, err := bus.Register(sub)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, NewNodeStateChangedEvent("node1", "verifying")))
	require.NoError(t, subscription.Close())
	require.NoError(t, bus.Publish(ctx, NewNodeStateChangedEvent("node1", "done")))
	require.Equal(t, 1, count)
}

func TestBusStopsAtFirstSubscriberError(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	called := 0
	failing := SubscriberFunc(func(ctx context.Context, event Event) error {
		called++
		return errBoom
	})
	_, err := bus.Register(failing)
	require.NoError(t, err)

	err = bus.Publish(ctx, NewGoalCompletedEvent("root", "finished"))
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 1, called)
}
