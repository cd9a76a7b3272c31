package agent

import (
	"context"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/internal/logfields"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/pkg/errors"
)

// Converge saves the node, fetches its compiled resource graph and hands
// both to the execution engine.
func (a *Agent) Converge(ctx context.Context, n *node.Node) error {
	safe := n.SafeName()
	if err := a.cfg.Service.SaveNode(ctx, n); err != nil {
		return unavailable("save node", err)
	}
	compiled, err := a.cfg.Service.Compile(ctx, safe)
	if err != nil {
		return unavailable("compile", err)
	}

	graph := compiled.Collection
	graph.Relink()
	a.log.WithFields(logfields.Node(n)).WithFields(logfields.Graph(graph)).Info("handing compiled graph to engine")

	if err := a.cfg.Engine.Converge(ctx, compiled.Node, graph); err != nil {
		return errors.Wrap(err, "engine did not accept graph")
	}
	return nil
}
