package engine

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/internal/testoutput"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/resource"
	"gotest.tools/assert"
	"gotest.tools/poll"
)

func requireShell(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is required to run engine commands")
	}
}

func testGraph() *resource.Graph {
	return resource.NewGraph(
		resource.Resource{Type: "package", Name: "nginx"},
		resource.Resource{Type: "service", Name: "nginx"},
	)
}

func TestExecHandsOffPayload(t *testing.T) {
	requireShell(t)
	out := filepath.Join(t.TempDir(), "payload.json")
	e, err := NewExec(testoutput.Logger(t, "engine"), "sh", "-c", `cat > "$0"`, out)
	assert.NilError(t, err)

	n := node.New("web01.example.com")
	n.Attributes["role"] = "web"
	assert.NilError(t, e.Converge(context.Background(), n, testGraph()))
	assert.NilError(t, e.Close())

	raw, err := os.ReadFile(out)
	assert.NilError(t, err)
	var payload Payload
	assert.NilError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, payload.Node.Name, "web01.example.com")
	assert.Equal(t, payload.Node.Attributes["role"], "web")
	assert.Equal(t, len(payload.Resources), 2)
	assert.Equal(t, payload.Resources[1].Type, "service")
}

func TestExecFailureReportedOnClose(t *testing.T) {
	requireShell(t)
	e, err := NewExec(testoutput.Logger(t, "engine"), "sh", "-c", "cat >/dev/null; exit 3")
	assert.NilError(t, err)

	assert.NilError(t, e.Converge(context.Background(), node.New("web01"), testGraph()))
	assert.ErrorContains(t, e.Close(), "exit status 3")
	assert.NilError(t, e.Close())
}

func TestExecMissingCommand(t *testing.T) {
	_, err := NewExec(testoutput.Logger(t, "engine"), "definitely-not-an-engine-binary")
	assert.ErrorContains(t, err, "not found")

	_, err = NewExec(testoutput.Logger(t, "engine"), "")
	assert.ErrorContains(t, err, "must be provided")
}

func TestNoop(t *testing.T) {
	e := NewNoop(testoutput.Logger(t, "engine"))
	assert.NilError(t, e.Converge(context.Background(), node.New("web01"), testGraph()))
	assert.NilError(t, e.Close())
}

func TestExecStartFailureReleasesOutputs(t *testing.T) {
	requireShell(t)
	bin := filepath.Join(t.TempDir(), "converge")
	assert.NilError(t, os.WriteFile(bin, []byte("#!/bin/sh\ncat >/dev/null\n"), 0o755))
	e, err := NewExec(testoutput.Logger(t, "engine"), bin)
	assert.NilError(t, err)
	assert.NilError(t, os.Remove(bin))

	before := runtime.NumGoroutine()
	for i := 0; i < 10; i++ {
		err := e.Converge(context.Background(), node.New("web01"), testGraph())
		assert.ErrorContains(t, err, "unable to start engine")
	}
	assert.NilError(t, e.Close())

	// Each failed start would otherwise leave two log pipe readers behind.
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if n := runtime.NumGoroutine(); n > before+2 {
			return poll.Continue("%d goroutines, started with %d", n, before)
		}
		return poll.Success()
	}, poll.WithTimeout(2*time.Second))
}
