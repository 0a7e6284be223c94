package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	runsSubmitted *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram
	nodesExecuted *prometheus.CounterVec
	nodeDuration  prometheus.Histogram

	workersIdle      prometheus.Gauge
	workersBusy      prometheus.Gauge
	workersUnhealthy prometheus.Gauge
	activeRuns       prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *Collector {
	return &Collector{
		runsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duragraph_runs_submitted_total",
				Help: "Total number of runs submitted",
			},
			[]string{"status"},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duragraph_runs_completed_total",
				Help: "Total number of runs reaching a terminal state",
			},
			[]string{"status"},
		),
		runDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "duragraph_run_duration_seconds",
				Help:    "Run duration from submission to terminal state in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		nodesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duragraph_nodes_executed_total",
				Help: "Total number of nodes executed",
			},
			[]string{"status"},
		),
		nodeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "duragraph_node_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		workersIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "duragraph_workers_idle",
				Help: "Number of idle registered workers",
			},
		),
		workersBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "duragraph_workers_busy",
				Help: "Number of busy registered workers",
			},
		),
		workersUnhealthy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "duragraph_workers_unhealthy",
				Help: "Number of registered workers with stale heartbeats",
			},
		),
		activeRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "duragraph_active_runs",
				Help: "Number of runs currently in flight",
			},
		),
	}
}

// RecordRunSubmitted records a run submission
func (c *Collector) RecordRunSubmitted(status string) {
	c.runsSubmitted.WithLabelValues(status).Inc()
}

// RecordRunCompleted records a run reaching a terminal state
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.Observe(duration.Seconds())
}

// RecordNodeExecuted records a node execution
func (c *Collector) RecordNodeExecuted(status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(status).Inc()
	c.nodeDuration.Observe(duration.Seconds())
}

// RecordWorkerStats records current worker population counts
func (c *Collector) RecordWorkerStats(idle, busy, unhealthy int) {
	c.workersIdle.Set(float64(idle))
	c.workersBusy.Set(float64(busy))
	c.workersUnhealthy.Set(float64(unhealthy))
}

// SetActiveRuns records the number of runs currently in flight
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}
