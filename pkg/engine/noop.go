package engine

import (
	"context"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/logging"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/resource"
)

// Noop logs what would be converged without acting on it.
type Noop struct {
	log logging.Logger
}

var _ Engine = (*Noop)(nil)

func NewNoop(log logging.Logger) *Noop {
	return &Noop{log: log}
}

func (e *Noop) Converge(_ context.Context, n *node.Node, g *resource.Graph) error {
	for i := range g.Resources {
		r := &g.Resources[i]
		e.log.WithField("node", n.Name).WithField("index", r.Owner().Index).Infof("would converge %s", r)
	}
	return nil
}

func (e *Noop) Close() error { return nil }
