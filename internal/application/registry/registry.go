package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duragraph/duragraph/pkg/domain"
	"github.com/duragraph/duragraph/pkg/ports"
)

// Stats summarizes the registered worker population.
type Stats struct {
	Total     int `json:"total"`
	Idle      int `json:"idle"`
	Busy      int `json:"busy"`
	Unhealthy int `json:"unhealthy"`
}

// Registry tracks registered workers and expires silent ones
type Registry struct {
	heartbeatTTL  time.Duration
	sweepInterval time.Duration
	metrics       ports.MetricsCollector
	logger        *zap.Logger

	mu      sync.RWMutex
	workers map[string]*domain.WorkerInfo

	running bool
	stopCh  chan struct{}
}

// New creates a new worker registry
func New(heartbeatTTL, sweepInterval time.Duration, metrics ports.MetricsCollector, logger *zap.Logger) *Registry {
	return &Registry{
		heartbeatTTL:  heartbeatTTL,
		sweepInterval: sweepInterval,
		metrics:       metrics,
		logger:        logger,
		workers:       make(map[string]*domain.WorkerInfo),
		stopCh:        make(chan struct{}),
	}
}

// Register adds a worker and returns its assigned ID
func (r *Registry) Register(name string, graphs []string) (*domain.WorkerInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("worker name is required")
	}
	if len(graphs) == 0 {
		return nil, fmt.Errorf("worker must register at least one graph")
	}

	now := time.Now()
	worker := &domain.WorkerInfo{
		ID:            uuid.New().String(),
		Name:          name,
		Graphs:        graphs,
		Status:        domain.WorkerStatusIdle,
		RegisteredAt:  now,
		LastHeartbeat: now,
	}

	r.mu.Lock()
	r.workers[worker.ID] = worker
	r.mu.Unlock()

	r.logger.Info("worker registered",
		zap.String("worker_id", worker.ID),
		zap.String("name", name),
		zap.Strings("graphs", graphs))

	r.publishStats()
	return worker, nil
}

// Heartbeat refreshes a worker's liveness and reported status
func (r *Registry) Heartbeat(workerID string, status domain.WorkerStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	worker, ok := r.workers[workerID]
	if !ok {
		return fmt.Errorf("worker %s: %w", workerID, domain.ErrNotFound)
	}

	worker.LastHeartbeat = time.Now()
	if status == domain.WorkerStatusIdle || status == domain.WorkerStatusBusy {
		worker.Status = status
	}

	return nil
}

// Deregister removes a worker
func (r *Registry) Deregister(workerID string) error {
	r.mu.Lock()
	_, ok := r.workers[workerID]
	delete(r.workers, workerID)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("worker %s: %w", workerID, domain.ErrNotFound)
	}

	r.logger.Info("worker deregistered", zap.String("worker_id", workerID))
	r.publishStats()
	return nil
}

// Worker retrieves a registered worker
func (r *Registry) Worker(workerID string) (*domain.WorkerInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	worker, ok := r.workers[workerID]
	if !ok {
		return nil, fmt.Errorf("worker %s: %w", workerID, domain.ErrNotFound)
	}

	copied := *worker
	return &copied, nil
}

// List returns all registered workers
func (r *Registry) List() []domain.WorkerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workers := make([]domain.WorkerInfo, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, *w)
	}
	return workers
}

// GraphRegistered reports whether any live worker serves the given graph
func (r *Registry) GraphRegistered(graphID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.workers {
		for _, g := range w.Graphs {
			if g == graphID {
				return true
			}
		}
	}
	return false
}

// Stats returns aggregate worker counts
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Total: len(r.workers)}
	for _, w := range r.workers {
		switch w.Status {
		case domain.WorkerStatusIdle:
			stats.Idle++
		case domain.WorkerStatusBusy:
			stats.Busy++
		case domain.WorkerStatusUnhealthy:
			stats.Unhealthy++
		}
	}
	return stats
}

// Start begins the background expiry sweep
func (r *Registry) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.sweep()
}

// Stop halts the background expiry sweep
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
}

// sweep expires workers whose heartbeats are older than the TTL
func (r *Registry) sweep() {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.expireSilent()
		}
	}
}

// expireSilent marks stale workers unhealthy and removes long-dead ones
func (r *Registry) expireSilent() {
	now := time.Now()
	var expired []string

	r.mu.Lock()
	for id, w := range r.workers {
		silence := now.Sub(w.LastHeartbeat)
		switch {
		case silence > 2*r.heartbeatTTL:
			delete(r.workers, id)
			expired = append(expired, id)
		case silence > r.heartbeatTTL:
			w.Status = domain.WorkerStatusUnhealthy
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.logger.Warn("worker expired after missed heartbeats",
			zap.String("worker_id", id))
	}

	r.publishStats()
}

// publishStats records current worker counts as metrics
func (r *Registry) publishStats() {
	stats := r.Stats()
	r.metrics.RecordWorkerStats(stats.Idle, stats.Busy, stats.Unhealthy)
}
