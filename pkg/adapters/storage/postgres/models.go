package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/duragraph/duragraph/pkg/domain"
)

type assistantRow struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	GraphID   string
	CreatedAt time.Time
}

func (assistantRow) TableName() string { return "assistants" }

type runRow struct {
	ID          string `gorm:"primaryKey"`
	AssistantID string `gorm:"index"`
	GraphID     string
	ThreadID    string `gorm:"index"`
	Input       datatypes.JSON
	Output      datatypes.JSON
	Status      string
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (runRow) TableName() string { return "runs" }

// eventRow rows are append-only; Seq preserves insertion order per run.
type eventRow struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	EventID   string `gorm:"uniqueIndex"`
	RunID     string `gorm:"index"`
	Type      string
	NodeID    string
	Timestamp time.Time
	Data      datatypes.JSON
}

func (eventRow) TableName() string { return "run_events" }

func toJSON(m map[string]any) (datatypes.JSON, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return datatypes.JSON(data), nil
}

func fromJSON(data datatypes.JSON) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return m, nil
}

func assistantToRow(a *domain.Assistant) assistantRow {
	return assistantRow{
		ID:        a.ID,
		Name:      a.Name,
		GraphID:   a.GraphID,
		CreatedAt: a.CreatedAt,
	}
}

func rowToAssistant(row assistantRow) domain.Assistant {
	return domain.Assistant{
		ID:        row.ID,
		Name:      row.Name,
		GraphID:   row.GraphID,
		CreatedAt: row.CreatedAt,
	}
}

func runToRow(r *domain.Run) (runRow, error) {
	input, err := toJSON(r.Input)
	if err != nil {
		return runRow{}, err
	}
	output, err := toJSON(r.Output)
	if err != nil {
		return runRow{}, err
	}
	return runRow{
		ID:          r.ID,
		AssistantID: r.AssistantID,
		GraphID:     r.GraphID,
		ThreadID:    r.ThreadID,
		Input:       input,
		Output:      output,
		Status:      string(r.Status),
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}, nil
}

func rowToRun(row runRow) (domain.Run, error) {
	input, err := fromJSON(row.Input)
	if err != nil {
		return domain.Run{}, err
	}
	output, err := fromJSON(row.Output)
	if err != nil {
		return domain.Run{}, err
	}
	return domain.Run{
		ID:          row.ID,
		AssistantID: row.AssistantID,
		GraphID:     row.GraphID,
		ThreadID:    row.ThreadID,
		Input:       input,
		Output:      output,
		Status:      domain.RunStatus(row.Status),
		Error:       row.Error,
		CreatedAt:   row.CreatedAt,
		StartedAt:   row.StartedAt,
		CompletedAt: row.CompletedAt,
	}, nil
}

func eventToRow(e *domain.Event) (eventRow, error) {
	data, err := toJSON(e.Data)
	if err != nil {
		return eventRow{}, err
	}
	return eventRow{
		EventID:   e.ID,
		RunID:     e.RunID,
		Type:      string(e.Type),
		NodeID:    e.NodeID,
		Timestamp: e.Timestamp,
		Data:      data,
	}, nil
}

func rowToEvent(row eventRow) (domain.Event, error) {
	data, err := fromJSON(row.Data)
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		ID:        row.EventID,
		Type:      domain.EventType(row.Type),
		RunID:     row.RunID,
		NodeID:    row.NodeID,
		Timestamp: row.Timestamp,
		Data:      data,
	}, nil
}
