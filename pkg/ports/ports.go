// Package ports defines the interfaces between the application layer and
// the adapters. Adapters come in a production flavor (Postgres, NATS,
// Redis) and an in-memory flavor used by tests.
package ports

import (
	"context"
	"time"

	"github.com/duragraph/duragraph/pkg/domain"
)

// RunStore persists assistants, runs and the append-only run event log.
type RunStore interface {
	CreateAssistant(ctx context.Context, a *domain.Assistant) error
	AssistantByID(ctx context.Context, id string) (*domain.Assistant, error)
	AssistantByName(ctx context.Context, name string) (*domain.Assistant, error)
	ListAssistants(ctx context.Context) ([]domain.Assistant, error)

	CreateRun(ctx context.Context, r *domain.Run) error
	RunByID(ctx context.Context, id string) (*domain.Run, error)
	UpdateRun(ctx context.Context, r *domain.Run) error
	ListRunsByThread(ctx context.Context, threadID string) ([]domain.Run, error)

	AppendEvent(ctx context.Context, e *domain.Event) error
	EventsByRun(ctx context.Context, runID string) ([]domain.Event, error)

	Ping(ctx context.Context) error
}

// EventHandler processes one event delivered by the bus.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes run dispatches and lifecycle events to the broker.
type EventBus interface {
	// Dispatch publishes a run instruction on the dispatch subject of the
	// run's graph. Workers queue-subscribe on that subject, so exactly one
	// worker receives each run.
	Dispatch(ctx context.Context, d domain.RunDispatch) error
	Publish(ctx context.Context, subject string, event domain.Event) error
	Subscribe(ctx context.Context, subject string, handler EventHandler) error
	Healthy() bool
	Close() error
}

// ConversationStore keeps the per-thread ordered message history.
// Unknown thread IDs yield an empty history, never an error.
type ConversationStore interface {
	Messages(ctx context.Context, threadID string) ([]domain.Message, error)
	Append(ctx context.Context, threadID, role, content string) error
	Clear(ctx context.Context, threadID string) error
}

// MetricsCollector records orchestration metrics.
type MetricsCollector interface {
	RecordRunSubmitted(status string)
	RecordRunCompleted(status string, duration time.Duration)
	RecordNodeExecuted(status string, duration time.Duration)
	RecordWorkerStats(idle, busy, unhealthy int)
	SetActiveRuns(count int)
}
