package resource

import (
	"encoding/json"
	"testing"

	"gotest.tools/assert"
)

const compiled = `{
  "resources": [
    {"type": "package", "name": "nginx", "params": {"version": "1.24"}},
    {"type": "template", "name": "/etc/nginx/nginx.conf"},
    {"type": "service", "name": "nginx", "params": {"action": ["enable", "start"]}}
  ]
}`

func decodeGraph(t *testing.T) *Graph {
	var g Graph
	assert.NilError(t, json.Unmarshal([]byte(compiled), &g))
	return &g
}

func TestRelinkRoundTrip(t *testing.T) {
	g := decodeGraph(t)
	for i := range g.Resources {
		assert.Check(t, !g.Resources[i].Owner().Valid(), "decoded resource must start unlinked")
	}

	g.Relink()
	assert.Equal(t, g.Len(), 3)
	for i := range g.Resources {
		r := &g.Resources[i]
		assert.Check(t, g.Owns(r), "resource %s not owned after relink", r)
		got, ok := g.Resolve(r.Owner())
		assert.Check(t, ok)
		assert.Check(t, got == r)
	}
}

func TestRelinkIsStable(t *testing.T) {
	g := decodeGraph(t)
	g.Relink()
	id := g.ID()
	g.Relink()
	assert.Equal(t, g.ID(), id)
}

func TestOwnsRejectsForeignResources(t *testing.T) {
	a := NewGraph(Resource{Type: "file", Name: "/a"})
	b := NewGraph(Resource{Type: "file", Name: "/a"})

	assert.Check(t, a.Owns(&a.Resources[0]))
	assert.Check(t, !a.Owns(&b.Resources[0]))
	assert.Check(t, !a.Owns(nil))

	copied := a.Resources[0]
	assert.Check(t, !a.Owns(&copied), "a copy is not the owned instance")

	_, ok := a.Resolve(b.Resources[0].Owner())
	assert.Check(t, !ok)
}

func TestLookup(t *testing.T) {
	g := decodeGraph(t)
	g.Relink()

	r, err := g.Lookup("service[nginx]")
	assert.NilError(t, err)
	assert.Equal(t, r.Type, "service")
	assert.Check(t, g.Owns(r))

	r, err = g.Lookup("template[/etc/nginx/nginx.conf]")
	assert.NilError(t, err)
	assert.Equal(t, r.Owner().Index, 1)

	_, err = g.Lookup("service[apache]")
	assert.ErrorContains(t, err, "not found")
	_, err = g.Lookup("service")
	assert.ErrorContains(t, err, "invalid resource reference")
}
