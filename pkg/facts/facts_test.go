package facts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/internal/testoutput"
	"github.com/pkg/errors"
	"gotest.tools/assert"
)

type testSource struct {
	name  string
	facts Facts
	err   error
}

func (s *testSource) Name() string { return s.name }

func (s *testSource) Collect(context.Context) (Facts, error) {
	return s.facts, s.err
}

func TestCollectorMergeOrder(t *testing.T) {
	log := testoutput.Logger(t, "facts")
	c := NewCollector(log,
		&testSource{name: "first", facts: Facts{"hostname": "a", "os": "linux"}},
		Static{"hostname": "b", "role": "web"},
	)
	facts, err := c.Collect(context.Background())
	assert.NilError(t, err)
	assert.DeepEqual(t, facts, Facts{"hostname": "b", "os": "linux", "role": "web"})
}

func TestCollectorRequiredFailure(t *testing.T) {
	log := testoutput.Logger(t, "facts")
	c := NewCollector(log,
		&testSource{name: "broken", err: errors.New("boom")},
		Static{"hostname": "b"},
	)
	_, err := c.Collect(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestCollectorOptionalFailure(t *testing.T) {
	log := testoutput.Logger(t, "facts")
	c := NewCollector(log,
		Optional(log, &testSource{name: "broken", err: errors.New("boom")}),
		Static{"hostname": "b"},
	)
	facts, err := c.Collect(context.Background())
	assert.NilError(t, err)
	assert.DeepEqual(t, facts, Facts{"hostname": "b"})
}

func TestNodeName(t *testing.T) {
	testcases := []struct {
		name     string
		facts    Facts
		expected string
		ok       bool
	}{
		{"fqdn preferred", Facts{FQDN: "web01.example.com", Hostname: "web01"}, "web01.example.com", true},
		{"hostname fallback", Facts{Hostname: "web01"}, "web01", true},
		{"empty fqdn", Facts{FQDN: "", Hostname: "web01"}, "web01", true},
		{"unresolved", Facts{"os": "linux"}, "", false},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			name, ok := tc.facts.NodeName()
			assert.Equal(t, ok, tc.ok)
			assert.Equal(t, name, tc.expected)
		})
	}
}

func TestOSFacts(t *testing.T) {
	testcases := []struct {
		name   string
		host   string
		cname  string
		fqdn   string
		short  string
		domain string
	}{
		{"qualified hostname", "web01.example.com", "", "web01.example.com", "web01", "example.com"},
		{"resolved cname", "web01", "web01.corp.example.", "web01.corp.example", "web01", "corp.example"},
		{"unrelated cname", "web01", "lb.example.com.", "", "web01", ""},
		{"unresolvable", "web01", "", "", "web01", ""},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			src := NewOS(testoutput.Logger(t, "facts"))
			src.Hostname = func() (string, error) { return tc.host, nil }
			src.LookupCNAME = func(context.Context, string) (string, error) {
				if tc.cname == "" {
					return "", errors.New("no such host")
				}
				return tc.cname, nil
			}
			facts, err := src.Collect(context.Background())
			assert.NilError(t, err)
			assert.Equal(t, facts[FQDN], tc.fqdn)
			assert.Equal(t, facts[Hostname], tc.short)
			assert.Equal(t, facts["domain"], tc.domain)
			assert.Check(t, facts["os"] != "")
		})
	}
}

func TestOSHostnameError(t *testing.T) {
	src := NewOS(testoutput.Logger(t, "facts"))
	src.Hostname = func() (string, error) { return "", errors.New("uts unavailable") }
	facts, err := src.Collect(context.Background())
	assert.NilError(t, err)
	_, ok := facts.NodeName()
	assert.Check(t, !ok)
	assert.Equal(t, facts["os"], runtime.GOOS)
}

func TestEC2Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := EC2{Endpoint: srv.URL}.Collect(context.Background())
	assert.ErrorContains(t, err, "not available")
}
