package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/duragraph/duragraph/pkg/domain"
)

// Store implements ports.RunStore on Postgres
type Store struct {
	orm    *gorm.DB
	logger *zap.Logger
}

// NewStore creates a new Postgres run store
func NewStore(orm *gorm.DB, logger *zap.Logger) *Store {
	return &Store{orm: orm, logger: logger}
}

// Initialize migrates the schema
func (s *Store) Initialize() error {
	if err := s.orm.AutoMigrate(
		&assistantRow{},
		&runRow{},
		&eventRow{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// CreateAssistant persists a new assistant
func (s *Store) CreateAssistant(ctx context.Context, a *domain.Assistant) error {
	row := assistantToRow(a)
	if tx := s.orm.WithContext(ctx).Create(&row); tx.Error != nil {
		return fmt.Errorf("failed to create assistant: %w", tx.Error)
	}

	s.logger.Debug("assistant saved",
		zap.String("assistant_id", a.ID),
		zap.String("name", a.Name))
	return nil
}

// AssistantByID retrieves an assistant by ID
func (s *Store) AssistantByID(ctx context.Context, id string) (*domain.Assistant, error) {
	var row assistantRow
	tx := s.orm.WithContext(ctx).Where("id = ?", id).First(&row)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("assistant %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get assistant: %w", tx.Error)
	}
	assistant := rowToAssistant(row)
	return &assistant, nil
}

// AssistantByName retrieves an assistant by its unique name
func (s *Store) AssistantByName(ctx context.Context, name string) (*domain.Assistant, error) {
	var row assistantRow
	tx := s.orm.WithContext(ctx).Where("name = ?", name).First(&row)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("assistant %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get assistant: %w", tx.Error)
	}
	assistant := rowToAssistant(row)
	return &assistant, nil
}

// ListAssistants lists all assistants in registration order
func (s *Store) ListAssistants(ctx context.Context) ([]domain.Assistant, error) {
	var rows []assistantRow
	if tx := s.orm.WithContext(ctx).Order("created_at").Find(&rows); tx.Error != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", tx.Error)
	}

	assistants := make([]domain.Assistant, 0, len(rows))
	for _, row := range rows {
		assistants = append(assistants, rowToAssistant(row))
	}
	return assistants, nil
}

// CreateRun persists a new run
func (s *Store) CreateRun(ctx context.Context, r *domain.Run) error {
	row, err := runToRow(r)
	if err != nil {
		return err
	}
	if tx := s.orm.WithContext(ctx).Create(&row); tx.Error != nil {
		return fmt.Errorf("failed to create run: %w", tx.Error)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", r.ID),
		zap.String("status", string(r.Status)))
	return nil
}

// RunByID retrieves a run by ID
func (s *Store) RunByID(ctx context.Context, id string) (*domain.Run, error) {
	var row runRow
	tx := s.orm.WithContext(ctx).Where("id = ?", id).First(&row)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", tx.Error)
	}

	run, err := rowToRun(row)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateRun saves the current state of a run
func (s *Store) UpdateRun(ctx context.Context, r *domain.Run) error {
	row, err := runToRow(r)
	if err != nil {
		return err
	}
	tx := s.orm.WithContext(ctx).Model(&runRow{}).Where("id = ?", r.ID).Updates(map[string]any{
		"status":       row.Status,
		"output":       row.Output,
		"error":        row.Error,
		"started_at":   row.StartedAt,
		"completed_at": row.CompletedAt,
	})
	if tx.Error != nil {
		return fmt.Errorf("failed to update run: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("run %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

// ListRunsByThread lists runs scoped to a thread in submission order
func (s *Store) ListRunsByThread(ctx context.Context, threadID string) ([]domain.Run, error) {
	var rows []runRow
	tx := s.orm.WithContext(ctx).Where("thread_id = ?", threadID).Order("created_at").Find(&rows)
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to list runs: %w", tx.Error)
	}

	runs := make([]domain.Run, 0, len(rows))
	for _, row := range rows {
		run, err := rowToRun(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// AppendEvent appends an event to the run event log
func (s *Store) AppendEvent(ctx context.Context, e *domain.Event) error {
	row, err := eventToRow(e)
	if err != nil {
		return err
	}
	if tx := s.orm.WithContext(ctx).Create(&row); tx.Error != nil {
		return fmt.Errorf("failed to append event: %w", tx.Error)
	}
	return nil
}

// EventsByRun lists a run's events in append order
func (s *Store) EventsByRun(ctx context.Context, runID string) ([]domain.Event, error) {
	var rows []eventRow
	tx := s.orm.WithContext(ctx).Where("run_id = ?", runID).Order("seq").Find(&rows)
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to list events: %w", tx.Error)
	}

	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		event, err := rowToEvent(row)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// Ping checks datastore connectivity
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.orm.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("datastore unreachable: %w", err)
	}
	return nil
}
