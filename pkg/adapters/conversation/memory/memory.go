package memory

import (
	"context"
	"sync"

	"github.com/duragraph/duragraph/pkg/domain"
)

// Store implements ports.ConversationStore using an in-memory map.
// History is process-local and lost on restart.
type Store struct {
	mu      sync.RWMutex
	threads map[string][]domain.Message
}

// NewStore creates a new in-memory conversation store
func NewStore() *Store {
	return &Store{
		threads: make(map[string][]domain.Message),
	}
}

// Messages returns a copy of a thread's history in chronological order.
// An unknown thread yields an empty history.
func (s *Store) Messages(ctx context.Context, threadID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]domain.Message, len(s.threads[threadID]))
	copy(messages, s.threads[threadID])
	return messages, nil
}

// Append adds a message to the end of a thread's history
func (s *Store) Append(ctx context.Context, threadID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[threadID] = append(s.threads[threadID], domain.Message{
		Role:    role,
		Content: content,
	})
	return nil
}

// Clear removes a thread's history
func (s *Store) Clear(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.threads, threadID)
	return nil
}
