package engine

import (
	"context"
	"encoding/json"
	"os/exec"
	"sync"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/internal/logfields"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/logging"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/resource"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Exec converges by starting an external command and writing the payload as
// JSON to its standard input.
type Exec struct {
	log  logging.Logger
	bin  string
	args []string

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

var _ Engine = (*Exec)(nil)

func NewExec(log logging.Logger, bin string, args ...string) (*Exec, error) {
	if bin == "" {
		return nil, errors.New("engine command must be provided")
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, errors.Wrapf(err, "engine command %q not found", bin)
	}
	return &Exec{log: log, bin: path, args: args}, nil
}

// Converge starts the command and returns once the payload is written and
// its standard input closed. The command keeps running; Close waits for it.
func (e *Exec) Converge(_ context.Context, n *node.Node, g *resource.Graph) error {
	payload, err := json.Marshal(Payload{Node: n, Resources: g.Resources})
	if err != nil {
		return errors.Wrap(err, "unable to encode engine payload")
	}

	cmd := exec.Command(e.bin, e.args...)
	log := e.log.WithFields(logfields.Node(n)).WithFields(logfields.Graph(g)).WithField("cmd", cmd.String())
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "unable to attach engine stdin")
	}
	cmd.Stdout = log.WriterLevel(logrus.InfoLevel)
	cmd.Stderr = log.WriterLevel(logrus.WarnLevel)

	log.Debug("starting engine")
	if err := cmd.Start(); err != nil {
		closeOutputs(cmd)
		return errors.Wrap(err, "unable to start engine")
	}

	e.wg.Add(1)
	go e.reap(log, cmd)

	_, err = stdin.Write(payload)
	if cerr := stdin.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "unable to hand graph to engine")
	}
	log.Info("graph handed to engine")
	return nil
}

func (e *Exec) reap(log logrus.FieldLogger, cmd *exec.Cmd) {
	defer e.wg.Done()
	err := cmd.Wait()
	closeOutputs(cmd)
	if err != nil {
		log.WithError(err).Error("engine exited with error")
		e.mu.Lock()
		e.errs = append(e.errs, err)
		e.mu.Unlock()
		return
	}
	log.Info("engine finished")
}

// Close waits for every started command and reports the first failure
// since the previous Close. The Exec may be used again afterwards.
func (e *Exec) Close() error {
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	err := e.errs[0]
	e.errs = nil
	return errors.Wrap(err, "engine")
}

// closeOutputs ends the log pipes attached to the command's output.
func closeOutputs(cmd *exec.Cmd) {
	for _, w := range []interface{}{cmd.Stdout, cmd.Stderr} {
		if c, ok := w.(interface{ Close() error }); ok {
			c.Close()
		}
	}
}
