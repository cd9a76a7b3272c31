// Package attributes applies attribute files to a node's attribute mapping.
//
// Attribute files are written in a small line-oriented language. Each
// non-blank line not starting with '#' is one statement:
//
//	set nginx.port = 8080
//	default nginx.workers = 4
//	append nginx.modules = gzip
//	unset nginx.legacy
//
// Values are YAML flow literals, so `8080` is a number, `"8080"` a string,
// `[a, b]` a list and `{k: v}` a mapping. Files are applied in the order they
// were received; a later file overrides what an earlier one set.
package attributes

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is an attribute file as listed by the service.
type File struct {
	Cookbook string `json:"cookbook"`
	Name     string `json:"name"`
	Contents string `json:"contents"`
}

// Label identifies the file in diagnostics.
func (f File) Label() string {
	return f.Cookbook + "/" + f.Name
}

// ExecutionError reports the statement of an attribute file that could not
// be applied.
type ExecutionError struct {
	Source string
	Line   int
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
func (e *ExecutionError) Cause() error  { return e.Err }

// ApplyAll applies files in order and stops at the first failure. Statements
// applied before a failure are not rolled back.
func ApplyAll(attrs node.Attributes, files []File) error {
	for _, f := range files {
		if err := Apply(attrs, f); err != nil {
			return err
		}
	}
	return nil
}

// Apply executes a single attribute file against attrs.
func Apply(attrs node.Attributes, f File) error {
	scanner := bufio.NewScanner(strings.NewReader(f.Contents))
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stmt, err := parse(line)
		if err == nil {
			err = stmt.exec(attrs)
		}
		if err != nil {
			return &ExecutionError{Source: f.Label(), Line: lineno, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return &ExecutionError{Source: f.Label(), Err: errors.Wrap(err, "unable to read contents")}
	}
	return nil
}

type verb string

const (
	verbSet     verb = "set"
	verbDefault verb = "default"
	verbAppend  verb = "append"
	verbUnset   verb = "unset"
)

type statement struct {
	verb  verb
	path  []string
	value interface{}
}

func parse(line string) (*statement, error) {
	fields := strings.SplitN(line, " ", 2)
	v := verb(fields[0])
	rest := ""
	if len(fields) == 2 {
		rest = strings.TrimSpace(fields[1])
	}

	switch v {
	case verbUnset:
		path, err := node.Path(rest)
		if err != nil {
			return nil, err
		}
		return &statement{verb: v, path: path}, nil

	case verbSet, verbDefault, verbAppend:
		eq := strings.Index(rest, "=")
		if eq < 0 {
			return nil, errors.Errorf("%s requires \"<path> = <value>\"", v)
		}
		path, err := node.Path(strings.TrimSpace(rest[:eq]))
		if err != nil {
			return nil, err
		}
		value, err := decodeValue(strings.TrimSpace(rest[eq+1:]))
		if err != nil {
			return nil, err
		}
		return &statement{verb: v, path: path, value: value}, nil
	}
	return nil, errors.Errorf("unknown statement %q", fields[0])
}

func (s *statement) exec(attrs node.Attributes) error {
	switch s.verb {
	case verbSet:
		return attrs.Set(s.path, s.value)
	case verbDefault:
		if _, ok := attrs.Get(s.path); ok {
			return nil
		}
		return attrs.Set(s.path, s.value)
	case verbAppend:
		cur, ok := attrs.Get(s.path)
		if !ok {
			return attrs.Set(s.path, []interface{}{s.value})
		}
		list, ok := cur.([]interface{})
		if !ok {
			return errors.Errorf("attribute %q is not a list", strings.Join(s.path, "."))
		}
		return attrs.Set(s.path, append(list, s.value))
	case verbUnset:
		return attrs.Delete(s.path)
	}
	return errors.Errorf("unknown statement %q", s.verb)
}

func decodeValue(raw string) (interface{}, error) {
	if raw == "" {
		return nil, errors.New("missing value")
	}
	var v interface{}
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, errors.Wrapf(err, "invalid value %q", raw)
	}
	return node.Normalize(v), nil
}
