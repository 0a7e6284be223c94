package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/duragraph/duragraph/pkg/domain"
)

// Store implements ports.RunStore using in-memory maps
// This is for testing purposes only
type Store struct {
	mu         sync.RWMutex
	assistants map[string]domain.Assistant
	runs       map[string]domain.Run
	events     map[string][]domain.Event
	order      []string // assistant IDs in registration order
}

// NewStore creates a new in-memory run store
func NewStore() *Store {
	return &Store{
		assistants: make(map[string]domain.Assistant),
		runs:       make(map[string]domain.Run),
		events:     make(map[string][]domain.Event),
	}
}

// CreateAssistant persists a new assistant
func (s *Store) CreateAssistant(ctx context.Context, a *domain.Assistant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.assistants {
		if existing.Name == a.Name {
			return fmt.Errorf("assistant %q: %w", a.Name, domain.ErrConflict)
		}
	}

	s.assistants[a.ID] = *a
	s.order = append(s.order, a.ID)
	return nil
}

// AssistantByID retrieves an assistant by ID
func (s *Store) AssistantByID(ctx context.Context, id string) (*domain.Assistant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assistants[id]
	if !ok {
		return nil, fmt.Errorf("assistant %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

// AssistantByName retrieves an assistant by its unique name
func (s *Store) AssistantByName(ctx context.Context, name string) (*domain.Assistant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.assistants {
		if a.Name == name {
			copied := a
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("assistant %q: %w", name, domain.ErrNotFound)
}

// ListAssistants lists all assistants in registration order
func (s *Store) ListAssistants(ctx context.Context) ([]domain.Assistant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assistants := make([]domain.Assistant, 0, len(s.order))
	for _, id := range s.order {
		assistants = append(assistants, s.assistants[id])
	}
	return assistants, nil
}

// CreateRun persists a new run
func (s *Store) CreateRun(ctx context.Context, r *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[r.ID] = *r
	return nil
}

// RunByID retrieves a run by ID
func (s *Store) RunByID(ctx context.Context, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return &r, nil
}

// UpdateRun saves the current state of a run
func (s *Store) UpdateRun(ctx context.Context, r *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[r.ID]; !ok {
		return fmt.Errorf("run %s: %w", r.ID, domain.ErrNotFound)
	}
	s.runs[r.ID] = *r
	return nil
}

// ListRunsByThread lists runs scoped to a thread in submission order
func (s *Store) ListRunsByThread(ctx context.Context, threadID string) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []domain.Run
	for _, r := range s.runs {
		if r.ThreadID == threadID {
			runs = append(runs, r)
		}
	}
	for i := 0; i < len(runs); i++ {
		for j := i + 1; j < len(runs); j++ {
			if runs[j].CreatedAt.Before(runs[i].CreatedAt) {
				runs[i], runs[j] = runs[j], runs[i]
			}
		}
	}
	return runs, nil
}

// AppendEvent appends an event to the run event log
func (s *Store) AppendEvent(ctx context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[e.RunID] = append(s.events[e.RunID], *e)
	return nil
}

// EventsByRun lists a run's events in append order
func (s *Store) EventsByRun(ctx context.Context, runID string) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]domain.Event, len(s.events[runID]))
	copy(events, s.events[runID])
	return events, nil
}

// Ping always succeeds for the in-memory store
func (s *Store) Ping(ctx context.Context) error {
	return nil
}
