package agent

import (
	"context"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/attributes"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
)

// ApplyAttributes runs the environment's attribute files against the node in
// the order the service lists them.
func (a *Agent) ApplyAttributes(ctx context.Context, n *node.Node) error {
	files, err := a.cfg.Service.ListAttributeFiles(ctx)
	if err != nil {
		return unavailable("list attribute files", err)
	}
	for _, f := range files {
		a.log.WithField("file", f.Label()).Debug("applying attribute file")
		if err := attributes.Apply(n.Attributes, f); err != nil {
			return err
		}
	}
	return nil
}
