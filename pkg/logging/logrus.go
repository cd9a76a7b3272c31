package logging

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Setter func(*logrus.Logger) error

var root = struct {
	logger *logrus.Logger
	mutex  *sync.Mutex
}{
	logger: func() *logrus.Logger {
		l := logrus.New()

		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})

		return l
	}(),
	mutex: &sync.Mutex{},
}

// Logger is the logging facade handed to each component.
type Logger interface {
	logrus.FieldLogger

	Writer() *io.PipeWriter
	WriterLevel(logrus.Level) *io.PipeWriter
}

// New returns a Logger tagged with the given component name.
func New(component string, setters ...Setter) Logger {
	for _, setter := range setters {
		// no errors handling for now
		_ = Set(setter)
	}
	return root.logger.WithField("component", component)
}

func Set(setter Setter) error {
	root.mutex.Lock()
	err := setter(root.logger)
	root.mutex.Unlock()
	return err
}

func Level(lvl string) Setter {
	l, err := logrus.ParseLevel(lvl)
	if err != nil {
		root.logger.WithError(err).Errorf("unable to parse provided level %q", lvl)
		l = logrus.DebugLevel
	}
	return func(r *logrus.Logger) error {
		r.SetLevel(l)
		return nil
	}
}

// Format selects the "text" or "json" formatter.
func Format(format string) Setter {
	return func(r *logrus.Logger) error {
		switch format {
		case "", "text":
			r.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		case "json":
			r.SetFormatter(&logrus.JSONFormatter{})
		default:
			return errors.Errorf("unknown log format %q", format)
		}
		return nil
	}
}

// Location directs output to the named file, or splits it between stdout and
// stderr when location is empty or "-".
func Location(location string) Setter {
	return func(r *logrus.Logger) error {
		r.ReplaceHooks(make(logrus.LevelHooks))
		if location == "" || location == "-" {
			r.SetOutput(io.Discard)
			r.AddHook(&LogSplitHook{os.Stdout, []logrus.Level{
				logrus.WarnLevel, logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel}})
			r.AddHook(&LogSplitHook{os.Stderr, []logrus.Level{
				logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}})
			return nil
		}
		f, err := os.OpenFile(location, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return errors.Wrapf(err, "unable to open log location %q", location)
		}
		r.SetOutput(f)
		return nil
	}
}
