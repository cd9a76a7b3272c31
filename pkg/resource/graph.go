// Package resource holds the compiled resource graph handed to the execution
// engine.
//
// A Graph owns its resources in a slice. Resources do not point back at the
// graph; after Relink each carries a Handle naming the graph's identity and
// the resource's index, which the graph resolves on lookup.
package resource

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Resource is a single declarative resource compiled for a node.
type Resource struct {
	Type   string                 `json:"type"`
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`

	owner Handle
}

// Handle references a resource through the graph that owns it.
type Handle struct {
	Graph uuid.UUID
	Index int
}

// Valid reports whether the handle was assigned by a graph.
func (h Handle) Valid() bool {
	return h.Graph != uuid.Nil
}

// Owner returns the handle assigned by the owning graph's Relink.
func (r *Resource) Owner() Handle {
	return r.owner
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s[%s]", r.Type, r.Name)
}

// Graph is an ordered collection of resources compiled for one node.
type Graph struct {
	id        uuid.UUID
	Resources []Resource `json:"resources"`
}

// NewGraph returns a linked graph over resources.
func NewGraph(resources ...Resource) *Graph {
	g := &Graph{Resources: resources}
	g.Relink()
	return g
}

// ID is the graph's identity, assigned on first Relink.
func (g *Graph) ID() uuid.UUID {
	return g.id
}

// Relink attaches every resource to this graph. Handles lost in transit, or
// copied from another graph, are replaced.
func (g *Graph) Relink() {
	if g.id == uuid.Nil {
		g.id = uuid.New()
	}
	for i := range g.Resources {
		g.Resources[i].owner = Handle{Graph: g.id, Index: i}
	}
}

// Owns reports whether r is linked to this graph at its own position.
func (g *Graph) Owns(r *Resource) bool {
	if r == nil || r.owner.Graph != g.id || !r.owner.Valid() {
		return false
	}
	got, ok := g.Resolve(r.owner)
	return ok && got == r
}

// Resolve returns the resource a handle refers to.
func (g *Graph) Resolve(h Handle) (*Resource, bool) {
	if h.Graph != g.id || h.Index < 0 || h.Index >= len(g.Resources) {
		return nil, false
	}
	return &g.Resources[h.Index], true
}

// Len returns the number of resources in the graph.
func (g *Graph) Len() int {
	return len(g.Resources)
}

var refPattern = regexp.MustCompile(`^([A-Za-z0-9_:]+)\[(.+)\]$`)

// Lookup finds a resource by its "type[name]" reference.
func (g *Graph) Lookup(ref string) (*Resource, error) {
	m := refPattern.FindStringSubmatch(ref)
	if m == nil {
		return nil, errors.Errorf("invalid resource reference %q, expected type[name]", ref)
	}
	for i := range g.Resources {
		r := &g.Resources[i]
		if r.Type == m[1] && r.Name == m[2] {
			return r, nil
		}
	}
	return nil, errors.Errorf("resource %s not found in graph", ref)
}
