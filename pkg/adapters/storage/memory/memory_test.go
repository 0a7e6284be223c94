package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/pkg/domain"
)

func TestAssistantLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	a := &domain.Assistant{ID: "a1", Name: "hello", GraphID: "hello-world", CreatedAt: time.Now()}
	require.NoError(t, store.CreateAssistant(ctx, a))

	byID, err := store.AssistantByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "hello", byID.Name)

	byName, err := store.AssistantByName(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "a1", byName.ID)

	_, err = store.AssistantByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.AssistantByName(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateAssistantNameConflict(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.CreateAssistant(ctx, &domain.Assistant{ID: "a1", Name: "hello"}))

	err := store.CreateAssistant(ctx, &domain.Assistant{ID: "a2", Name: "hello"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestListAssistantsRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, store.CreateAssistant(ctx, &domain.Assistant{ID: name, Name: name}))
	}

	assistants, err := store.ListAssistants(ctx)
	require.NoError(t, err)
	require.Len(t, assistants, 3)
	assert.Equal(t, "c", assistants[0].ID)
	assert.Equal(t, "a", assistants[1].ID)
	assert.Equal(t, "b", assistants[2].ID)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	run := &domain.Run{
		ID:        "r1",
		ThreadID:  "t1",
		Status:    domain.RunStatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateRun(ctx, run))

	fetched, err := store.RunByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPending, fetched.Status)

	fetched.Status = domain.RunStatusCompleted
	require.NoError(t, store.UpdateRun(ctx, fetched))

	fetched, err = store.RunByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, fetched.Status)

	_, err = store.RunByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.UpdateRun(ctx, &domain.Run{ID: "missing"}), domain.ErrNotFound)
}

func TestListRunsByThreadOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	base := time.Now()
	require.NoError(t, store.CreateRun(ctx, &domain.Run{ID: "r2", ThreadID: "t1", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, store.CreateRun(ctx, &domain.Run{ID: "r1", ThreadID: "t1", CreatedAt: base}))
	require.NoError(t, store.CreateRun(ctx, &domain.Run{ID: "r3", ThreadID: "other", CreatedAt: base}))

	runs, err := store.ListRunsByThread(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r1", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
}

func TestEventAppendOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i, typ := range []domain.EventType{
		domain.EventTypeRunCreated,
		domain.EventTypeRunStarted,
		domain.EventTypeRunCompleted,
	} {
		require.NoError(t, store.AppendEvent(ctx, &domain.Event{
			ID:    string(rune('a' + i)),
			Type:  typ,
			RunID: "r1",
		}))
	}

	events, err := store.EventsByRun(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventTypeRunCreated, events[0].Type)
	assert.Equal(t, domain.EventTypeRunStarted, events[1].Type)
	assert.Equal(t, domain.EventTypeRunCompleted, events[2].Type)

	other, err := store.EventsByRun(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, other)
}
