// Package node models a managed host's configuration identity and the
// attribute state tracked for it by the configuration service.
package node

import (
	"strings"

	"github.com/pkg/errors"
)

// Node is a host's configuration state as tracked by the service.
type Node struct {
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes"`
}

// New constructs a Node that only carries its name.
func New(name string) *Node {
	return &Node{Name: name, Attributes: Attributes{}}
}

// SafeName is the key the node is stored under on the service.
func (n *Node) SafeName() string {
	return SafeName(n.Name)
}

// SafeName derives the dot-free identifier for a canonical node name.
func SafeName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// Merge overlays a copy of values onto the node's top-level attributes.
// Incoming values replace any existing value under the same key; later
// changes to the node never reach values.
func (n *Node) Merge(values map[string]interface{}) {
	if n.Attributes == nil {
		n.Attributes = Attributes{}
	}
	for k, v := range values {
		n.Attributes[k] = Normalize(v)
	}
}

// MergeFacts overlays string facts onto the node's top-level attributes.
func (n *Node) MergeFacts(facts map[string]string) {
	if n.Attributes == nil {
		n.Attributes = Attributes{}
	}
	for k, v := range facts {
		n.Attributes[k] = v
	}
}

// Validate checks that a node received from the service is usable under the
// name it was requested for.
func (n *Node) Validate(safeName string) error {
	switch {
	case n == nil:
		return errors.New("node is nil")
	case n.Name == "":
		return errors.New("node has no name")
	case SafeName(n.Name) != safeName:
		return errors.Errorf("node %q does not match requested identifier %q", n.Name, safeName)
	}
	return nil
}
