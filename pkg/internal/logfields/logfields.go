package logfields

import (
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/resource"

	"github.com/sirupsen/logrus"
)

func Node(n *node.Node) logrus.Fields {
	return logrus.Fields{
		"node":      n.Name,
		"safe-name": n.SafeName(),
	}
}

func Graph(g *resource.Graph) logrus.Fields {
	return logrus.Fields{
		"graph":     g.ID(),
		"resources": g.Len(),
	}
}
