package node

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Attributes is the nested attribute mapping of a Node. Nested mappings are
// always map[string]interface{}.
type Attributes map[string]interface{}

// Path splits a dotted attribute path into its keys.
func Path(dotted string) ([]string, error) {
	if dotted == "" {
		return nil, errors.New("empty attribute path")
	}
	keys := strings.Split(dotted, ".")
	for _, k := range keys {
		if k == "" {
			return nil, errors.Errorf("attribute path %q has an empty key", dotted)
		}
	}
	return keys, nil
}

// Get returns the value at path and whether it was present.
func (a Attributes) Get(path []string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(a)
	for _, k := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set assigns value at path, creating intermediate mappings as needed.
func (a Attributes) Set(path []string, value interface{}) error {
	parent, err := a.parent(path, true)
	if err != nil {
		return err
	}
	parent[path[len(path)-1]] = value
	return nil
}

// Delete removes the value at path. Deleting an absent path is not an error.
func (a Attributes) Delete(path []string) error {
	parent, err := a.parent(path, false)
	if err != nil || parent == nil {
		return err
	}
	delete(parent, path[len(path)-1])
	return nil
}

func (a Attributes) parent(path []string, create bool) (map[string]interface{}, error) {
	if len(path) == 0 {
		return nil, errors.New("empty attribute path")
	}
	cur := map[string]interface{}(a)
	for i, k := range path[:len(path)-1] {
		next, ok := cur[k]
		if !ok {
			if !create {
				return nil, nil
			}
			m := map[string]interface{}{}
			cur[k] = m
			cur = m
			continue
		}
		m, ok := asMap(next)
		if !ok {
			return nil, errors.Errorf("attribute %q is not a mapping", strings.Join(path[:i+1], "."))
		}
		cur = m
	}
	return cur, nil
}

// Normalize returns a deep copy of v in which every mapping is a
// map[string]interface{}, so the result can be walked by attribute paths and
// encoded as JSON. Mappings with other key types have their keys formatted.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = Normalize(val)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = Normalize(val)
		}
		return m
	case Attributes:
		return Normalize(map[string]interface{}(t))
	case []interface{}:
		l := make([]interface{}, len(t))
		for i := range t {
			l[i] = Normalize(t[i])
		}
		return l
	}
	return v
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Attributes:
		return m, true
	}
	return nil, false
}
