package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/duragraph/duragraph/pkg/domain"
	"github.com/duragraph/duragraph/pkg/ports"
)

// Bus implements ports.EventBus using NATS JetStream. Dispatches and
// lifecycle events are captured in a single stream so they survive broker
// restarts; live subscribers receive them over core NATS fan-out.
type Bus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	stream string
	logger *zap.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewBus creates a new JetStream event bus, creating the stream if needed
func NewBus(conn *nats.Conn, stream string, logger *zap.Logger) (*Bus, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{"run.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", stream, err)
		}
		logger.Info("created JetStream stream", zap.String("stream", stream))
	}

	return &Bus{
		conn:   conn,
		js:     js,
		stream: stream,
		logger: logger,
	}, nil
}

// Dispatch publishes a run instruction on the graph's dispatch subject
func (b *Bus) Dispatch(ctx context.Context, d domain.RunDispatch) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch: %w", err)
	}

	subject := domain.DispatchSubject(d.GraphID)
	if _, err := b.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish dispatch: %w", err)
	}

	b.logger.Debug("run dispatched",
		zap.String("run_id", d.RunID),
		zap.String("subject", subject))
	return nil
}

// Publish publishes a run lifecycle event
func (b *Bus) Publish(ctx context.Context, subject string, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := b.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("subject", subject))
	return nil
}

// Subscribe delivers events published on a subject to the handler until
// the context is cancelled
func (b *Bus) Subscribe(ctx context.Context, subject string, handler ports.EventHandler) error {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event domain.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Error("failed to unmarshal event",
				zap.String("subject", subject),
				zap.Error(err))
			return
		}

		if err := handler(ctx, event); err != nil {
			b.logger.Error("handler error",
				zap.String("subject", subject),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Debug("unsubscribe failed",
				zap.String("subject", subject),
				zap.Error(err))
		}
	}()

	return nil
}

// Healthy reports whether the broker connection is alive
func (b *Bus) Healthy() bool {
	return b.conn != nil && b.conn.IsConnected()
}

// Close drains all subscriptions; the connection is closed by the caller
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.IsValid() {
			_ = sub.Unsubscribe()
		}
	}
	b.subs = nil
	return nil
}
