package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/duragraph/duragraph/pkg/domain"
)

// Options configures a Worker
type Options struct {
	// Name identifies the worker to the control plane.
	Name string

	// ControlPlaneURL is the control plane address. Defaults to the
	// DURAGRAPH_URL environment variable, then http://localhost:8081.
	ControlPlaneURL string

	// NATSURL overrides the broker address handed back at registration.
	NATSURL string

	// HeartbeatInterval between liveness reports. Defaults to 10s.
	HeartbeatInterval time.Duration

	Logger *zap.Logger
}

// registration mirrors the control plane's worker registration response
type registration struct {
	WorkerID  string `json:"worker_id"`
	BrokerURL string `json:"broker_url"`
}

// Worker registers graphs with the control plane and executes dispatched
// runs one at a time in the order received.
type Worker struct {
	opts   Options
	graphs map[string]*Graph
	client *http.Client
	logger *zap.Logger

	id   string
	busy atomic.Bool
}

// New creates a new worker
func New(opts Options) *Worker {
	if opts.ControlPlaneURL == "" {
		opts.ControlPlaneURL = os.Getenv("DURAGRAPH_URL")
	}
	if opts.ControlPlaneURL == "" {
		opts.ControlPlaneURL = "http://localhost:8081"
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Worker{
		opts:   opts,
		graphs: make(map[string]*Graph),
		client: &http.Client{Timeout: 30 * time.Second},
		logger: opts.Logger,
	}
}

// RegisterGraph adds a graph to the worker's registration set
func (w *Worker) RegisterGraph(g *Graph) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}
	if _, exists := w.graphs[g.ID()]; exists {
		return fmt.Errorf("graph %s already registered", g.ID())
	}
	w.graphs[g.ID()] = g
	return nil
}

// Run registers with the control plane and executes dispatched runs until
// the context is cancelled
func (w *Worker) Run(ctx context.Context) error {
	if w.opts.Name == "" {
		return fmt.Errorf("worker name is required")
	}
	if len(w.graphs) == 0 {
		return fmt.Errorf("worker must register at least one graph")
	}

	reg, err := w.register(ctx)
	if err != nil {
		return fmt.Errorf("failed to register with control plane: %w", err)
	}
	w.id = reg.WorkerID

	brokerURL := w.opts.NATSURL
	if brokerURL == "" {
		brokerURL = reg.BrokerURL
	}
	if brokerURL == "" {
		brokerURL = nats.DefaultURL
	}

	conn, err := nats.Connect(brokerURL,
		nats.Name("duragraph-worker-"+w.opts.Name),
		nats.MaxReconnects(-1))
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer conn.Close()

	// One shared channel keeps execution strictly sequential across all
	// registered graphs.
	msgCh := make(chan *nats.Msg, 64)
	for graphID := range w.graphs {
		subject := domain.DispatchSubject(graphID)
		queue := "workers." + graphID
		if _, err := conn.ChanQueueSubscribe(subject, queue, msgCh); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		w.logger.Info("subscribed to dispatch subject",
			zap.String("graph_id", graphID),
			zap.String("subject", subject))
	}

	go w.heartbeatLoop(ctx)

	w.logger.Info("worker registered, waiting for runs",
		zap.String("worker_id", w.id),
		zap.String("control_plane", w.opts.ControlPlaneURL))

	for {
		select {
		case <-ctx.Done():
			w.deregister()
			w.logger.Info("worker stopped", zap.String("worker_id", w.id))
			return nil
		case msg := <-msgCh:
			w.execute(ctx, msg.Data)
		}
	}
}

// execute runs one dispatched run and reports the result
func (w *Worker) execute(ctx context.Context, data []byte) {
	var dispatch domain.RunDispatch
	if err := json.Unmarshal(data, &dispatch); err != nil {
		w.logger.Error("failed to unmarshal dispatch", zap.Error(err))
		return
	}

	graph, ok := w.graphs[dispatch.GraphID]
	if !ok {
		w.logger.Error("dispatch for unregistered graph",
			zap.String("run_id", dispatch.RunID),
			zap.String("graph_id", dispatch.GraphID))
		return
	}

	w.busy.Store(true)
	defer w.busy.Store(false)

	w.logger.Info("executing run",
		zap.String("run_id", dispatch.RunID),
		zap.String("graph_id", dispatch.GraphID),
		zap.String("thread_id", dispatch.ThreadID))

	state := State{KeyThreadID: dispatch.ThreadID}
	for k, v := range dispatch.Input {
		state[k] = v
	}

	start := time.Now()
	final, nodeResults, err := graph.Execute(ctx, state)

	result := domain.RunResult{
		WorkerID: w.id,
		Status:   domain.RunStatusCompleted,
		Output:   map[string]any(final),
		Nodes:    nodeResults,
	}
	if err != nil {
		result.Status = domain.RunStatusFailed
		result.Error = err.Error()
	}

	if err := w.postResult(ctx, dispatch.RunID, result); err != nil {
		w.logger.Error("failed to report run result",
			zap.String("run_id", dispatch.RunID),
			zap.Error(err))
		return
	}

	w.logger.Info("run executed",
		zap.String("run_id", dispatch.RunID),
		zap.String("status", string(result.Status)),
		zap.Duration("duration", time.Since(start)))
}

// heartbeatLoop reports liveness until the context is cancelled
func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := domain.WorkerStatusIdle
			if w.busy.Load() {
				status = domain.WorkerStatusBusy
			}
			path := fmt.Sprintf("/api/v1/workers/%s/heartbeat", w.id)
			if err := w.postJSON(ctx, path, map[string]any{"status": status}, nil); err != nil {
				w.logger.Warn("heartbeat failed", zap.Error(err))
			}
		}
	}
}

// register announces the worker and its graphs to the control plane
func (w *Worker) register(ctx context.Context) (*registration, error) {
	graphIDs := make([]string, 0, len(w.graphs))
	for id := range w.graphs {
		graphIDs = append(graphIDs, id)
	}

	var reg registration
	err := w.postJSON(ctx, "/api/v1/workers", map[string]any{
		"name":   w.opts.Name,
		"graphs": graphIDs,
	}, &reg)
	if err != nil {
		return nil, err
	}
	if reg.WorkerID == "" {
		return nil, fmt.Errorf("control plane returned empty worker_id")
	}
	return &reg, nil
}

// deregister removes the worker from the control plane registry
func (w *Worker) deregister() {
	req, err := http.NewRequest(http.MethodDelete,
		w.opts.ControlPlaneURL+"/api/v1/workers/"+w.id, nil)
	if err != nil {
		return
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("deregistration failed", zap.Error(err))
		return
	}
	_ = resp.Body.Close()
}

// postResult reports a run result to the control plane
func (w *Worker) postResult(ctx context.Context, runID string, result domain.RunResult) error {
	return w.postJSON(ctx, fmt.Sprintf("/api/v1/runs/%s/result", runID), result, nil)
}

// postJSON posts a JSON body to the control plane and decodes the response
func (w *Worker) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.opts.ControlPlaneURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("control plane returned %d: %s", resp.StatusCode, payload)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
