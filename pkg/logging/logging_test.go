package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

func TestLogSplitHook(t *testing.T) {
	var errs, rest bytes.Buffer
	l := logrus.New()
	l.SetOutput(&bytes.Buffer{})
	l.AddHook(&LogSplitHook{&rest, []logrus.Level{logrus.InfoLevel}})
	l.AddHook(&LogSplitHook{&errs, []logrus.Level{logrus.ErrorLevel}})

	l.Info("converged")
	l.Error("unreachable")

	assert.Check(t, is.Contains(rest.String(), "converged"))
	assert.Check(t, !bytes.Contains(rest.Bytes(), []byte("unreachable")))
	assert.Check(t, is.Contains(errs.String(), "unreachable"))
}

func TestFormat(t *testing.T) {
	l := logrus.New()
	assert.NilError(t, Format("json")(l))
	_, ok := l.Formatter.(*logrus.JSONFormatter)
	assert.Check(t, ok)

	assert.ErrorContains(t, Format("xml")(l), "unknown log format")
}

func TestLocationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	l := logrus.New()
	assert.NilError(t, Location(path)(l))
	l.WithField("component", "test").Info("written to file")

	contents, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Check(t, is.Contains(string(contents), "written to file"))
}

func TestLocationConsole(t *testing.T) {
	l := logrus.New()
	assert.NilError(t, Location("-")(l))
	assert.Equal(t, len(l.Hooks[logrus.ErrorLevel]), 1)
	assert.Equal(t, len(l.Hooks[logrus.InfoLevel]), 1)
}

func TestLocationUnwritable(t *testing.T) {
	l := logrus.New()
	err := Location(filepath.Join(t.TempDir(), "missing", "agent.log"))(l)
	assert.ErrorContains(t, err, "unable to open log location")
}
