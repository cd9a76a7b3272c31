package node

import (
	"encoding/json"
	"strings"
	"testing"

	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

func TestSafeName(t *testing.T) {
	testcases := []struct {
		name string
		safe string
	}{
		{"web01", "web01"},
		{"web01.example.com", "web01_example_com"},
		{"a..b.", "a__b_"},
		{"", ""},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			safe := SafeName(tc.name)
			assert.Equal(t, safe, tc.safe)
			assert.Equal(t, SafeName(safe), safe, "derivation must be idempotent")
			assert.Check(t, !strings.Contains(safe, "."))
		})
	}
}

func TestNewNodeOnlyName(t *testing.T) {
	n := New("db.example.com")
	assert.Equal(t, n.Name, "db.example.com")
	assert.Equal(t, n.SafeName(), "db_example_com")
	assert.Check(t, is.Len(n.Attributes, 0))
}

func TestMergeFactsWin(t *testing.T) {
	n := New("db")
	n.Attributes["hostname"] = "stale"
	n.Attributes["role"] = "database"
	n.MergeFacts(map[string]string{"hostname": "db", "os": "linux"})

	assert.Equal(t, n.Attributes["hostname"], "db")
	assert.Equal(t, n.Attributes["os"], "linux")
	assert.Equal(t, n.Attributes["role"], "database")
}

func TestMergeNilAttributes(t *testing.T) {
	n := &Node{Name: "x"}
	n.Merge(map[string]interface{}{"a": 1})
	assert.Equal(t, n.Attributes["a"], 1)
}

func TestValidate(t *testing.T) {
	assert.NilError(t, New("a.b").Validate("a_b"))
	assert.ErrorContains(t, New("a.c").Validate("a_b"), "does not match")
	assert.ErrorContains(t, (&Node{}).Validate("a_b"), "no name")
}

func TestAttributesPaths(t *testing.T) {
	a := Attributes{}
	assert.NilError(t, a.Set([]string{"nginx", "port"}, 80))

	v, ok := a.Get([]string{"nginx", "port"})
	assert.Check(t, ok)
	assert.Equal(t, v, 80)

	_, ok = a.Get([]string{"nginx", "missing"})
	assert.Check(t, !ok)

	err := a.Set([]string{"nginx", "port", "inner"}, 1)
	assert.ErrorContains(t, err, `"nginx.port" is not a mapping`)

	assert.NilError(t, a.Delete([]string{"nginx", "port"}))
	_, ok = a.Get([]string{"nginx", "port"})
	assert.Check(t, !ok)
	assert.NilError(t, a.Delete([]string{"absent", "key"}))
}

func TestAttributesDecodedFromJSON(t *testing.T) {
	var n Node
	err := json.Unmarshal([]byte(`{"name":"h","attributes":{"a":{"b":1}}}`), &n)
	assert.NilError(t, err)
	assert.NilError(t, n.Attributes.Set([]string{"a", "c"}, "x"))
	v, ok := n.Attributes.Get([]string{"a", "b"})
	assert.Check(t, ok)
	assert.Equal(t, v, float64(1))
}

func TestPath(t *testing.T) {
	p, err := Path("a.b.c")
	assert.NilError(t, err)
	assert.DeepEqual(t, p, []string{"a", "b", "c"})

	_, err = Path("a..c")
	assert.ErrorContains(t, err, "empty key")
	_, err = Path("")
	assert.ErrorContains(t, err, "empty attribute path")
}

func TestMergeCopiesValues(t *testing.T) {
	values := map[string]interface{}{
		"app":     map[string]interface{}{"mode": "json"},
		"modules": []interface{}{"gzip"},
	}
	n := New("web01")
	n.Merge(values)

	assert.NilError(t, n.Attributes.Delete([]string{"app", "mode"}))
	n.Attributes["modules"].([]interface{})[0] = "ssl"

	assert.DeepEqual(t, values, map[string]interface{}{
		"app":     map[string]interface{}{"mode": "json"},
		"modules": []interface{}{"gzip"},
	})
}

func TestNormalize(t *testing.T) {
	in := map[string]interface{}{
		"ports": map[interface{}]interface{}{80: "http", true: []interface{}{map[interface{}]interface{}{"k": 1}}},
	}
	out := Normalize(in)
	assert.DeepEqual(t, out, map[string]interface{}{
		"ports": map[string]interface{}{
			"80":   "http",
			"true": []interface{}{map[string]interface{}{"k": 1}},
		},
	})

	_, err := json.Marshal(out)
	assert.NilError(t, err)
	assert.Equal(t, Normalize("scalar"), "scalar")
}
