package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/pkg/domain"
)

func TestDispatchRecorded(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	require.NoError(t, bus.Dispatch(ctx, domain.RunDispatch{RunID: "r1", GraphID: "g1"}))
	require.NoError(t, bus.Dispatch(ctx, domain.RunDispatch{RunID: "r2", GraphID: "g1"}))

	dispatches := bus.Dispatches()
	require.Len(t, dispatches, 2)
	assert.Equal(t, "r1", dispatches[0].RunID)
	assert.Equal(t, "r2", dispatches[1].RunID)
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	subject := domain.EventSubject("r1")
	var received []domain.Event
	require.NoError(t, bus.Subscribe(ctx, subject, func(ctx context.Context, e domain.Event) error {
		received = append(received, e)
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, subject, domain.Event{ID: "e1", Type: domain.EventTypeRunCreated}))
	require.NoError(t, bus.Publish(ctx, domain.EventSubject("other"), domain.Event{ID: "e2"}))

	require.Len(t, received, 1)
	assert.Equal(t, "e1", received[0].ID)

	published := bus.Published(subject)
	require.Len(t, published, 1)
	assert.Equal(t, domain.EventTypeRunCreated, published[0].Type)
}

func TestCloseDropsSubscribers(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	subject := domain.EventSubject("r1")
	delivered := 0
	require.NoError(t, bus.Subscribe(ctx, subject, func(ctx context.Context, e domain.Event) error {
		delivered++
		return nil
	}))

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Publish(ctx, subject, domain.Event{ID: "e1"}))

	assert.Zero(t, delivered)
}
