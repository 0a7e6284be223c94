package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	eventsmem "github.com/duragraph/duragraph/pkg/adapters/events/memory"
	storagemem "github.com/duragraph/duragraph/pkg/adapters/storage/memory"
	"github.com/duragraph/duragraph/pkg/domain"
)

// nopMetrics satisfies ports.MetricsCollector without touching the
// Prometheus default registry.
type nopMetrics struct{}

func (nopMetrics) RecordRunSubmitted(string)                {}
func (nopMetrics) RecordRunCompleted(string, time.Duration) {}
func (nopMetrics) RecordNodeExecuted(string, time.Duration) {}
func (nopMetrics) RecordWorkerStats(int, int, int)          {}
func (nopMetrics) SetActiveRuns(int)                        {}

func newTestScheduler() (*Scheduler, *storagemem.Store, *eventsmem.Bus) {
	store := storagemem.NewStore()
	bus := eventsmem.NewBus()
	s := New(store, bus, nopMetrics{}, NewValidator(), nil, zap.NewNop(), time.Minute)
	return s, store, bus
}

// failingBus rejects every dispatch while behaving normally otherwise.
type failingBus struct {
	*eventsmem.Bus
}

func (b *failingBus) Dispatch(ctx context.Context, d domain.RunDispatch) error {
	return errors.New("broker unavailable")
}

// graphDirectoryStub answers GraphRegistered from a fixed set.
type graphDirectoryStub map[string]bool

func (d graphDirectoryStub) GraphRegistered(graphID string) bool { return d[graphID] }

func TestCreateAssistant(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	assistant, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)
	assert.NotEmpty(t, assistant.ID)
	assert.Equal(t, "hello", assistant.Name)
	assert.Equal(t, "hello-world", assistant.GraphID)

	fetched, err := s.AssistantByID(ctx, assistant.ID)
	require.NoError(t, err)
	assert.Equal(t, assistant.ID, fetched.ID)
}

func TestCreateAssistantDuplicateName(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	_, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)

	_, err = s.CreateAssistant(ctx, "hello", "other-graph")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateAssistantValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	_, err := s.CreateAssistant(ctx, "", "hello-world")
	assert.Error(t, err)

	_, err = s.CreateAssistant(ctx, "hello", "")
	assert.Error(t, err)
}

func TestSubmitRunDispatches(t *testing.T) {
	ctx := context.Background()
	s, _, bus := newTestScheduler()

	assistant, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)

	run, err := s.SubmitRun(ctx, assistant.ID, "thread1", map[string]any{"name": "Alice"})
	require.NoError(t, err)
	defer s.Shutdown(ctx)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.Equal(t, "hello-world", run.GraphID)
	assert.Equal(t, "thread1", run.ThreadID)

	dispatches := bus.Dispatches()
	require.Len(t, dispatches, 1)
	assert.Equal(t, run.ID, dispatches[0].RunID)
	assert.Equal(t, "hello-world", dispatches[0].GraphID)
	assert.Equal(t, "Alice", dispatches[0].Input["name"])

	events, err := s.RunEvents(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeRunCreated, events[0].Type)
}

func TestSubmitRunDefaultsThread(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	assistant, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)

	run, err := s.SubmitRun(ctx, assistant.ID, "", nil)
	require.NoError(t, err)
	defer s.Shutdown(ctx)

	assert.Equal(t, DefaultThreadID, run.ThreadID)
}

func TestSubmitRunDispatchFailureFailsRun(t *testing.T) {
	ctx := context.Background()
	store := storagemem.NewStore()
	s := New(store, &failingBus{Bus: eventsmem.NewBus()}, nopMetrics{}, NewValidator(), nil, zap.NewNop(), time.Minute)

	assistant, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)

	_, err = s.SubmitRun(ctx, assistant.ID, "thread1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch")

	// The stored run must not linger in a non-terminal state.
	runs, err := s.ListRunsByThread(ctx, "thread1")
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.True(t, run.Status.Terminal())
	assert.Equal(t, "dispatch failed", run.Error)
	require.NotNil(t, run.CompletedAt)

	events, err := store.EventsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventTypeRunCreated, events[0].Type)
	assert.Equal(t, domain.EventTypeRunFailed, events[1].Type)
}

func TestSubmitRunWarnsWhenNoWorkerServesGraph(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	s := New(storagemem.NewStore(), eventsmem.NewBus(), nopMetrics{}, NewValidator(),
		graphDirectoryStub{"chatbot-memory": true}, zap.New(core), time.Minute)

	unserved, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)
	served, err := s.CreateAssistant(ctx, "chatbot", "chatbot-memory")
	require.NoError(t, err)

	_, err = s.SubmitRun(ctx, unserved.ID, "thread1", nil)
	require.NoError(t, err)
	_, err = s.SubmitRun(ctx, served.ID, "thread1", nil)
	require.NoError(t, err)
	defer s.Shutdown(ctx)

	warnings := logs.FilterMessage("no live worker registered for graph").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "hello-world", warnings[0].ContextMap()["graph_id"])
}

func TestSubmitRunUnknownAssistant(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	_, err := s.SubmitRun(ctx, "no-such-assistant", "thread1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHandleResultCompletesRun(t *testing.T) {
	ctx := context.Background()
	s, _, bus := newTestScheduler()

	assistant, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)
	run, err := s.SubmitRun(ctx, assistant.ID, "thread1", map[string]any{"name": "Bob"})
	require.NoError(t, err)

	err = s.HandleResult(ctx, run.ID, domain.RunResult{
		WorkerID: "worker-1",
		Status:   domain.RunStatusCompleted,
		Output:   map[string]any{"greeting": "Hello, Bob!"},
		Nodes: []domain.NodeResult{
			{Node: "greet", Status: domain.RunStatusCompleted, DurationMS: 3},
			{Node: "farewell", Status: domain.RunStatusCompleted, DurationMS: 1},
		},
	})
	require.NoError(t, err)

	fetched, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, fetched.Status)
	assert.Equal(t, "Hello, Bob!", fetched.Output["greeting"])
	require.NotNil(t, fetched.StartedAt)
	require.NotNil(t, fetched.CompletedAt)

	// created, started, two node completions, completed
	events, err := s.RunEvents(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, domain.EventTypeRunCreated, events[0].Type)
	assert.Equal(t, domain.EventTypeRunStarted, events[1].Type)
	assert.Equal(t, domain.EventTypeNodeCompleted, events[2].Type)
	assert.Equal(t, "greet", events[2].NodeID)
	assert.Equal(t, domain.EventTypeNodeCompleted, events[3].Type)
	assert.Equal(t, domain.EventTypeRunCompleted, events[4].Type)

	// Every logged event was also published for live streaming.
	published := bus.Published(domain.EventSubject(run.ID))
	assert.Len(t, published, 5)
}

func TestHandleResultFailedRun(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	assistant, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)
	run, err := s.SubmitRun(ctx, assistant.ID, "thread1", nil)
	require.NoError(t, err)

	err = s.HandleResult(ctx, run.ID, domain.RunResult{
		WorkerID: "worker-1",
		Status:   domain.RunStatusFailed,
		Error:    "node greet failed: boom",
		Nodes: []domain.NodeResult{
			{Node: "greet", Status: domain.RunStatusFailed, Error: "boom", DurationMS: 2},
		},
	})
	require.NoError(t, err)

	fetched, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, fetched.Status)
	assert.Equal(t, "node greet failed: boom", fetched.Error)

	events, err := s.RunEvents(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, domain.EventTypeNodeFailed, events[2].Type)
	assert.Equal(t, domain.EventTypeRunFailed, events[3].Type)
}

func TestHandleResultRejectsTerminalRun(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	assistant, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)
	run, err := s.SubmitRun(ctx, assistant.ID, "thread1", nil)
	require.NoError(t, err)

	result := domain.RunResult{WorkerID: "worker-1", Status: domain.RunStatusCompleted}
	require.NoError(t, s.HandleResult(ctx, run.ID, result))

	err = s.HandleResult(ctx, run.ID, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal")
}

func TestHandleResultRejectsInvalidStatus(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	assistant, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)
	run, err := s.SubmitRun(ctx, assistant.ID, "thread1", nil)
	require.NoError(t, err)
	defer s.Shutdown(ctx)

	err = s.HandleResult(ctx, run.ID, domain.RunResult{
		WorkerID: "worker-1",
		Status:   domain.RunStatusRunning,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid result status")
}

func TestCancelRun(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	assistant, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)
	run, err := s.SubmitRun(ctx, assistant.ID, "thread1", nil)
	require.NoError(t, err)

	require.NoError(t, s.CancelRun(ctx, run.ID))

	fetched, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCancelled, fetched.Status)

	// Cancelling twice is rejected; so is a late result.
	assert.Error(t, s.CancelRun(ctx, run.ID))
	assert.Error(t, s.HandleResult(ctx, run.ID, domain.RunResult{
		WorkerID: "worker-1",
		Status:   domain.RunStatusCompleted,
	}))
}

func TestRunEventsUnknownRun(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	_, err := s.RunEvents(ctx, "no-such-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListRunsByThread(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestScheduler()

	assistant, err := s.CreateAssistant(ctx, "hello", "hello-world")
	require.NoError(t, err)

	first, err := s.SubmitRun(ctx, assistant.ID, "thread1", nil)
	require.NoError(t, err)
	_, err = s.SubmitRun(ctx, assistant.ID, "thread2", nil)
	require.NoError(t, err)
	second, err := s.SubmitRun(ctx, assistant.ID, "thread1", nil)
	require.NoError(t, err)
	defer s.Shutdown(ctx)

	runs, err := s.ListRunsByThread(ctx, "thread1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)
}
