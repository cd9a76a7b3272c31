package testoutput

import (
	"io"
	"os"
	"testing"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/logging"
	"github.com/sirupsen/logrus"
)

// New returns a writer that forwards each written line to the test log.
func New(t testing.TB) io.Writer {
	return &testoutput{t}
}

// Logger returns a component logger whose output is interlaced with the
// test's own output for the duration of the test.
func Logger(t testing.TB, component string) logging.Logger {
	logging.Set(Setter(t))
	t.Cleanup(func() { logging.Set(Revert()) })
	return logging.New(component)
}

// Setter may be given to logging to configure the output to be sent to the
// testing facade. Parallel tests must not use it as they would write to each
// other's output.
func Setter(t testing.TB) logging.Setter {
	return func(l *logrus.Logger) error {
		l.ReplaceHooks(make(logrus.LevelHooks))
		l.SetOutput(New(t))
		l.SetLevel(logrus.DebugLevel)
		return nil
	}
}

// Revert restores the logger output to write to stderr.
func Revert() logging.Setter {
	return func(l *logrus.Logger) error {
		l.SetOutput(os.Stderr)
		return nil
	}
}

type testoutput struct {
	t testing.TB
}

func (l *testoutput) Write(p []byte) (n int, err error) {
	l.t.Logf("%s", p)
	return len(p), nil
}
