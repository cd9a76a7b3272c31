// Package engine hands a compiled resource graph to the component that
// converges the host. This module does not interpret convergence results;
// an Engine only has to accept the graph.
package engine

import (
	"context"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/resource"
)

// Engine is implemented by convergence backends.
type Engine interface {
	// Converge accepts the node and its compiled graph. It returns once the
	// engine has taken ownership of the graph, not once convergence is done.
	Converge(ctx context.Context, n *node.Node, g *resource.Graph) error
	// Close waits for any convergence still owned by the engine.
	Close() error
}

// Payload is what an engine receives.
type Payload struct {
	Node      *node.Node          `json:"node"`
	Resources []resource.Resource `json:"resources"`
}
