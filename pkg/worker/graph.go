package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/duragraph/duragraph/pkg/domain"
)

// NodeFunc is one step in a graph: a transformation over the shared state.
type NodeFunc func(ctx context.Context, state State) (State, error)

type graphNode struct {
	name string
	fn   NodeFunc
}

// Graph is an ordered sequence of named nodes executed strictly
// sequentially per run.
type Graph struct {
	id    string
	nodes []graphNode
}

// NewGraph creates a new graph with the given identifier
func NewGraph(id string) *Graph {
	return &Graph{id: id}
}

// Node appends a named node to the graph and returns the graph for chaining
func (g *Graph) Node(name string, fn NodeFunc) *Graph {
	g.nodes = append(g.nodes, graphNode{name: name, fn: fn})
	return g
}

// ID returns the graph identifier
func (g *Graph) ID() string {
	return g.id
}

// NodeNames returns the node names in execution order
func (g *Graph) NodeNames() []string {
	names := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		names[i] = n.name
	}
	return names
}

// Validate checks the graph structure
func (g *Graph) Validate() error {
	if g.id == "" {
		return fmt.Errorf("graph ID is required")
	}
	if len(g.nodes) == 0 {
		return fmt.Errorf("graph must have at least one node")
	}

	seen := make(map[string]bool)
	for _, n := range g.nodes {
		if n.name == "" {
			return fmt.Errorf("node name is required")
		}
		if n.fn == nil {
			return fmt.Errorf("node %s has no function", n.name)
		}
		if seen[n.name] {
			return fmt.Errorf("duplicate node name: %s", n.name)
		}
		seen[n.name] = true
	}
	return nil
}

// Execute runs the nodes in registration order over the initial state.
// The first node error aborts the run: remaining nodes are skipped and the
// error is returned alongside the per-node results gathered so far.
func (g *Graph) Execute(ctx context.Context, state State) (State, []domain.NodeResult, error) {
	results := make([]domain.NodeResult, 0, len(g.nodes))

	for _, n := range g.nodes {
		if err := ctx.Err(); err != nil {
			return state, results, fmt.Errorf("run interrupted before node %s: %w", n.name, err)
		}

		start := time.Now()
		next, err := n.fn(ctx, state)
		duration := time.Since(start)

		if err != nil {
			results = append(results, domain.NodeResult{
				Node:       n.name,
				Status:     domain.RunStatusFailed,
				Error:      err.Error(),
				DurationMS: duration.Milliseconds(),
			})
			return state, results, fmt.Errorf("node %s: %w", n.name, err)
		}

		results = append(results, domain.NodeResult{
			Node:       n.name,
			Status:     domain.RunStatusCompleted,
			DurationMS: duration.Milliseconds(),
		})
		state = next
	}

	return state, results, nil
}
