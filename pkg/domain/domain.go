package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an entity with the same identity already exists.
var ErrConflict = errors.New("already exists")

// Assistant maps a name to a registered workflow graph.
type Assistant struct {
	ID        string    `json:"assistant_id"`
	Name      string    `json:"name"`
	GraphID   string    `json:"graph_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run is one execution of an assistant against an input payload,
// scoped to a thread.
type Run struct {
	ID          string         `json:"run_id"`
	AssistantID string         `json:"assistant_id"`
	GraphID     string         `json:"graph_id"`
	ThreadID    string         `json:"thread_id"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Status      RunStatus      `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Message is one entry in a thread's conversation history.
// Messages within a thread are append-only and order-preserving.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EventType identifies a run lifecycle event.
type EventType string

const (
	EventTypeRunCreated    EventType = "run.created"
	EventTypeRunStarted    EventType = "run.started"
	EventTypeRunCompleted  EventType = "run.completed"
	EventTypeRunFailed     EventType = "run.failed"
	EventTypeRunCancelled  EventType = "run.cancelled"
	EventTypeNodeStarted   EventType = "node.started"
	EventTypeNodeCompleted EventType = "node.completed"
	EventTypeNodeFailed    EventType = "node.failed"
)

// Event is one entry in a run's event log.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	NodeID    string         `json:"node_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// RunDispatch is the instruction published to workers when a run is
// scheduled. Workers subscribed to the run's graph receive exactly one copy.
type RunDispatch struct {
	RunID    string         `json:"run_id"`
	GraphID  string         `json:"graph_id"`
	ThreadID string         `json:"thread_id"`
	Input    map[string]any `json:"input,omitempty"`
}

// NodeResult reports the outcome of one node within a run.
type NodeResult struct {
	Node       string    `json:"node"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// RunResult is the payload a worker posts back after executing a run.
type RunResult struct {
	WorkerID string         `json:"worker_id"`
	Status   RunStatus      `json:"status"`
	Output   map[string]any `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Nodes    []NodeResult   `json:"nodes,omitempty"`
}

// WorkerStatus represents the reported state of a registered worker.
type WorkerStatus string

const (
	WorkerStatusIdle      WorkerStatus = "idle"
	WorkerStatusBusy      WorkerStatus = "busy"
	WorkerStatusUnhealthy WorkerStatus = "unhealthy"
)

// WorkerInfo describes a worker registered with the control plane.
type WorkerInfo struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Graphs        []string     `json:"graphs"`
	Status        WorkerStatus `json:"status"`
	RegisteredAt  time.Time    `json:"registered_at"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
}

// DispatchSubject returns the broker subject runs for a graph are
// published on.
func DispatchSubject(graphID string) string {
	return "run.dispatch." + graphID
}

// EventSubject returns the broker subject a run's lifecycle events are
// published on.
func EventSubject(runID string) string {
	return "run.events." + runID
}
