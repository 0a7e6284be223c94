package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/duragraph/duragraph/pkg/domain"
)

// Store implements ports.ConversationStore on Redis lists. Each thread is
// one list; messages are appended with RPUSH so chronological order is the
// list order.
type Store struct {
	client *redis.Client
	logger *zap.Logger

	// maxMessages bounds each thread's history to the most recent N
	// entries. Zero means unbounded.
	maxMessages int64
}

// NewStore creates a new Redis conversation store
func NewStore(client *redis.Client, maxMessages int64, logger *zap.Logger) *Store {
	return &Store{
		client:      client,
		logger:      logger,
		maxMessages: maxMessages,
	}
}

// Messages returns a thread's history in chronological order.
// An unknown thread yields an empty history.
func (s *Store) Messages(ctx context.Context, threadID string) ([]domain.Message, error) {
	key := threadKey(threadID)

	entries, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read thread history: %w", err)
	}

	messages := make([]domain.Message, 0, len(entries))
	for _, entry := range entries {
		var msg domain.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Append adds a message to the end of a thread's history, trimming to the
// configured retention if one is set
func (s *Store) Append(ctx context.Context, threadID, role, content string) error {
	key := threadKey(threadID)

	data, err := json.Marshal(domain.Message{Role: role, Content: content})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	if s.maxMessages > 0 {
		if err := s.client.LTrim(ctx, key, -s.maxMessages, -1).Err(); err != nil {
			return fmt.Errorf("failed to trim thread history: %w", err)
		}
	}

	s.logger.Debug("message appended",
		zap.String("thread_id", threadID),
		zap.String("role", role))
	return nil
}

// Clear removes a thread's history
func (s *Store) Clear(ctx context.Context, threadID string) error {
	if err := s.client.Del(ctx, threadKey(threadID)).Err(); err != nil {
		return fmt.Errorf("failed to clear thread: %w", err)
	}
	return nil
}

// threadKey returns the Redis key for a thread's message list
func threadKey(threadID string) string {
	return fmt.Sprintf("duragraph:thread:%s", threadID)
}
