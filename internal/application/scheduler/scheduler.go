package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duragraph/duragraph/pkg/domain"
	"github.com/duragraph/duragraph/pkg/ports"
)

// DefaultThreadID is used when a run request carries no thread_id.
const DefaultThreadID = "default"

// GraphDirectory reports whether any live worker currently serves a graph.
type GraphDirectory interface {
	GraphRegistered(graphID string) bool
}

// Scheduler coordinates run execution
type Scheduler struct {
	store     ports.RunStore
	bus       ports.EventBus
	metrics   ports.MetricsCollector
	validator *Validator
	graphs    GraphDirectory
	logger    *zap.Logger

	// Track active runs
	runs       sync.Map // map[string]*runContext
	activeRuns atomic.Int64

	// Configuration
	runTimeout time.Duration
}

// runContext holds cancellation state for a single active run
type runContext struct {
	runID      string
	startedAt  time.Time
	cancelFunc context.CancelFunc
}

// New creates a new run scheduler
func New(
	store ports.RunStore,
	bus ports.EventBus,
	metrics ports.MetricsCollector,
	validator *Validator,
	graphs GraphDirectory,
	logger *zap.Logger,
	runTimeout time.Duration,
) *Scheduler {
	return &Scheduler{
		store:      store,
		bus:        bus,
		metrics:    metrics,
		validator:  validator,
		graphs:     graphs,
		logger:     logger,
		runTimeout: runTimeout,
	}
}

// CreateAssistant validates and registers a new assistant
func (s *Scheduler) CreateAssistant(ctx context.Context, name, graphID string) (*domain.Assistant, error) {
	if err := s.validator.ValidateAssistant(name, graphID); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if existing, err := s.store.AssistantByName(ctx, name); err == nil && existing != nil {
		return nil, fmt.Errorf("assistant %q: %w", name, domain.ErrConflict)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up assistant: %w", err)
	}

	assistant := &domain.Assistant{
		ID:        uuid.New().String(),
		Name:      name,
		GraphID:   graphID,
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateAssistant(ctx, assistant); err != nil {
		return nil, fmt.Errorf("failed to save assistant: %w", err)
	}

	s.logger.Info("assistant registered",
		zap.String("assistant_id", assistant.ID),
		zap.String("name", name),
		zap.String("graph_id", graphID))

	return assistant, nil
}

// AssistantByID retrieves a registered assistant
func (s *Scheduler) AssistantByID(ctx context.Context, id string) (*domain.Assistant, error) {
	return s.store.AssistantByID(ctx, id)
}

// ListAssistants lists all registered assistants
func (s *Scheduler) ListAssistants(ctx context.Context) ([]domain.Assistant, error) {
	return s.store.ListAssistants(ctx)
}

// SubmitRun validates and dispatches a run for execution
func (s *Scheduler) SubmitRun(ctx context.Context, assistantID, threadID string, input map[string]any) (*domain.Run, error) {
	if err := s.validator.ValidateRunRequest(assistantID); err != nil {
		s.metrics.RecordRunSubmitted("rejected")
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	assistant, err := s.store.AssistantByID(ctx, assistantID)
	if err != nil {
		s.metrics.RecordRunSubmitted("rejected")
		return nil, fmt.Errorf("assistant %s: %w", assistantID, err)
	}

	// Thread IDs are opaque; an absent one falls back to the shared
	// default thread, matching worker-side behavior.
	if threadID == "" {
		threadID = DefaultThreadID
	}

	// Dispatches are retained by the broker, so a missing worker delays
	// the run rather than losing it. Still worth surfacing.
	if s.graphs != nil && !s.graphs.GraphRegistered(assistant.GraphID) {
		s.logger.Warn("no live worker registered for graph",
			zap.String("graph_id", assistant.GraphID),
			zap.String("assistant_id", assistant.ID))
	}

	run := &domain.Run{
		ID:          uuid.New().String(),
		AssistantID: assistant.ID,
		GraphID:     assistant.GraphID,
		ThreadID:    threadID,
		Input:       input,
		Status:      domain.RunStatusPending,
		CreatedAt:   time.Now(),
	}

	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	s.recordEvent(ctx, &domain.Event{
		ID:        uuid.New().String(),
		Type:      domain.EventTypeRunCreated,
		RunID:     run.ID,
		Timestamp: time.Now(),
		Data: map[string]any{
			"assistant_id": assistant.ID,
			"thread_id":    threadID,
		},
	})

	if err := s.bus.Dispatch(ctx, domain.RunDispatch{
		RunID:    run.ID,
		GraphID:  assistant.GraphID,
		ThreadID: threadID,
		Input:    input,
	}); err != nil {
		s.logger.Error("failed to dispatch run",
			zap.String("run_id", run.ID),
			zap.Error(err))

		// No dispatch means no worker will ever report a result; fail
		// the stored run rather than leave it pending forever.
		now := time.Now()
		run.Status = domain.RunStatusFailed
		run.Error = "dispatch failed"
		run.CompletedAt = &now
		if uerr := s.store.UpdateRun(ctx, run); uerr != nil {
			s.logger.Error("failed to save run after dispatch failure",
				zap.String("run_id", run.ID),
				zap.Error(uerr))
		}
		s.recordEvent(ctx, &domain.Event{
			ID:        uuid.New().String(),
			Type:      domain.EventTypeRunFailed,
			RunID:     run.ID,
			Timestamp: now,
			Data:      map[string]any{"error": "dispatch failed"},
		})
		s.metrics.RecordRunCompleted(string(domain.RunStatusFailed), now.Sub(run.CreatedAt))

		return nil, fmt.Errorf("failed to dispatch run: %w", err)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	s.runs.Store(run.ID, &runContext{
		runID:      run.ID,
		startedAt:  time.Now(),
		cancelFunc: cancel,
	})
	s.metrics.SetActiveRuns(int(s.activeRuns.Add(1)))
	s.metrics.RecordRunSubmitted(string(domain.RunStatusPending))

	s.logger.Info("run submitted",
		zap.String("run_id", run.ID),
		zap.String("assistant_id", assistant.ID),
		zap.String("graph_id", assistant.GraphID),
		zap.String("thread_id", threadID))

	go s.monitorRun(runCtx, run.ID)

	return run, nil
}

// GetRun retrieves the current state of a run
func (s *Scheduler) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	return s.store.RunByID(ctx, runID)
}

// ListRunsByThread lists all runs scoped to a thread
func (s *Scheduler) ListRunsByThread(ctx context.Context, threadID string) ([]domain.Run, error) {
	return s.store.ListRunsByThread(ctx, threadID)
}

// RunEvents retrieves the event log of a run in append order
func (s *Scheduler) RunEvents(ctx context.Context, runID string) ([]domain.Event, error) {
	if _, err := s.store.RunByID(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.EventsByRun(ctx, runID)
}

// HandleResult applies a worker-reported result to a run
func (s *Scheduler) HandleResult(ctx context.Context, runID string, result domain.RunResult) error {
	run, err := s.store.RunByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}

	if run.Status.Terminal() {
		return fmt.Errorf("run %s already in terminal state %s", runID, run.Status)
	}

	if result.Status != domain.RunStatusCompleted && result.Status != domain.RunStatusFailed {
		return fmt.Errorf("invalid result status: %s", result.Status)
	}

	now := time.Now()
	if run.StartedAt == nil {
		run.StartedAt = &now
	}
	run.Status = result.Status
	run.Output = result.Output
	run.Error = result.Error
	run.CompletedAt = &now

	if err := s.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.recordEvent(ctx, &domain.Event{
		ID:        uuid.New().String(),
		Type:      domain.EventTypeRunStarted,
		RunID:     runID,
		Timestamp: *run.StartedAt,
		Data: map[string]any{
			"worker_id": result.WorkerID,
		},
	})

	for _, node := range result.Nodes {
		duration := time.Duration(node.DurationMS) * time.Millisecond
		eventType := domain.EventTypeNodeCompleted
		data := map[string]any{"duration_ms": node.DurationMS}
		if node.Status == domain.RunStatusFailed {
			eventType = domain.EventTypeNodeFailed
			data["error"] = node.Error
		}
		s.recordEvent(ctx, &domain.Event{
			ID:        uuid.New().String(),
			Type:      eventType,
			RunID:     runID,
			NodeID:    node.Node,
			Timestamp: now,
			Data:      data,
		})
		s.metrics.RecordNodeExecuted(string(node.Status), duration)
	}

	finalType := domain.EventTypeRunCompleted
	finalData := map[string]any{"output": result.Output}
	if result.Status == domain.RunStatusFailed {
		finalType = domain.EventTypeRunFailed
		finalData = map[string]any{"error": result.Error}
	}
	s.recordEvent(ctx, &domain.Event{
		ID:        uuid.New().String(),
		Type:      finalType,
		RunID:     runID,
		Timestamp: now,
		Data:      finalData,
	})

	s.finishRun(runID)
	s.metrics.RecordRunCompleted(string(result.Status), now.Sub(run.CreatedAt))

	s.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.String("worker_id", result.WorkerID),
		zap.String("status", string(result.Status)))

	return nil
}

// CancelRun cancels a pending or running run
func (s *Scheduler) CancelRun(ctx context.Context, runID string) error {
	run, err := s.store.RunByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}

	if run.Status.Terminal() {
		return fmt.Errorf("run %s already in terminal state %s", runID, run.Status)
	}

	now := time.Now()
	run.Status = domain.RunStatusCancelled
	run.CompletedAt = &now

	if err := s.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.recordEvent(ctx, &domain.Event{
		ID:        uuid.New().String(),
		Type:      domain.EventTypeRunCancelled,
		RunID:     runID,
		Timestamp: now,
	})

	s.finishRun(runID)
	s.metrics.RecordRunCompleted(string(domain.RunStatusCancelled), now.Sub(run.CreatedAt))

	s.logger.Info("run cancelled", zap.String("run_id", runID))

	return nil
}

// monitorRun watches a run until it reaches a terminal state or times out
func (s *Scheduler) monitorRun(ctx context.Context, runID string) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.handleTimeout(runID)
			}
			return

		case <-ticker.C:
			run, err := s.store.RunByID(context.Background(), runID)
			if err != nil {
				s.logger.Error("failed to get run during monitoring",
					zap.String("run_id", runID),
					zap.Error(err))
				continue
			}

			if run.Status.Terminal() {
				s.finishRun(runID)
				return
			}
		}
	}
}

// handleTimeout fails a run that exceeded the execution timeout
func (s *Scheduler) handleTimeout(runID string) {
	ctx := context.Background()

	run, err := s.store.RunByID(ctx, runID)
	if err != nil {
		s.logger.Error("failed to get run during timeout",
			zap.String("run_id", runID),
			zap.Error(err))
		return
	}

	if run.Status.Terminal() {
		s.finishRun(runID)
		return
	}

	s.logger.Warn("run execution timed out", zap.String("run_id", runID))

	now := time.Now()
	run.Status = domain.RunStatusFailed
	run.Error = "execution timeout"
	run.CompletedAt = &now

	if err := s.store.UpdateRun(ctx, run); err != nil {
		s.logger.Error("failed to save run during timeout",
			zap.String("run_id", runID),
			zap.Error(err))
	}

	s.recordEvent(ctx, &domain.Event{
		ID:        uuid.New().String(),
		Type:      domain.EventTypeRunFailed,
		RunID:     runID,
		Timestamp: now,
		Data: map[string]any{
			"error": "execution timeout",
		},
	})

	s.finishRun(runID)
	s.metrics.RecordRunCompleted(string(domain.RunStatusFailed), now.Sub(run.CreatedAt))
}

// recordEvent appends an event to the run's log and publishes it on the bus
func (s *Scheduler) recordEvent(ctx context.Context, event *domain.Event) {
	if err := s.store.AppendEvent(ctx, event); err != nil {
		s.logger.Error("failed to append event",
			zap.String("run_id", event.RunID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}

	if err := s.bus.Publish(ctx, domain.EventSubject(event.RunID), *event); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("run_id", event.RunID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// finishRun releases tracking state for a run
func (s *Scheduler) finishRun(runID string) {
	if val, ok := s.runs.LoadAndDelete(runID); ok {
		val.(*runContext).cancelFunc()
		s.metrics.SetActiveRuns(int(s.activeRuns.Add(-1)))
	}
}

// Shutdown gracefully shuts down the scheduler
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down scheduler")

	s.runs.Range(func(key, value any) bool {
		value.(*runContext).cancelFunc()
		return true
	})

	s.logger.Info("scheduler shut down complete")
	return nil
}
