package agent

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/attributes"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/engine"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/facts"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/logging"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/secretstore"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/service"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Service is the configuration service as used by the agent.
type Service interface {
	GetNode(ctx context.Context, safeName string) (*node.Node, error)
	SaveNode(ctx context.Context, n *node.Node) error
	GetRegistration(ctx context.Context, safeName string) (*service.Registration, error)
	CreateRegistration(ctx context.Context, safeName, secret string) error
	StartAuth(ctx context.Context, safeName string) (*service.AuthAction, error)
	CompleteAuth(ctx context.Context, safeName string, action *service.AuthAction, secret string) (*service.Session, error)
	ListAttributeFiles(ctx context.Context) ([]attributes.File, error)
	Compile(ctx context.Context, safeName string) (*service.Compiled, error)
}

// FactSource supplies the host's facts.
type FactSource interface {
	Collect(ctx context.Context) (facts.Facts, error)
}

// Config carries the agent's collaborators and settings.
type Config struct {
	Service Service
	Facts   FactSource
	Secrets secretstore.Store
	Engine  engine.Engine

	// NodeName overrides the name resolved from facts.
	NodeName string
	// JSONAttributes are merged into the node after facts.
	JSONAttributes map[string]interface{}
	// Rand is the source secrets are drawn from, crypto/rand when nil.
	Rand io.Reader
}

type Agent struct {
	log  logging.Logger
	cfg  Config
	rand io.Reader
}

func New(log logging.Logger, cfg Config) (*Agent, error) {
	switch {
	case cfg.Service == nil:
		return nil, errors.New("configuration service is nil")
	case cfg.Facts == nil:
		return nil, errors.New("fact source is nil")
	case cfg.Secrets == nil:
		return nil, errors.New("secret store is nil")
	case cfg.Engine == nil:
		return nil, errors.New("execution engine is nil")
	}
	r := cfg.Rand
	if r == nil {
		r = rand.Reader
	}
	return &Agent{log: log, cfg: cfg, rand: r}, nil
}

// Report describes a finished run.
type Report struct {
	ID          uuid.UUID
	Started     time.Time
	Duration    time.Duration
	State       State
	Transitions []State
	// Failed is the step that failed, when State is StateFailed.
	Failed State
}

func (r *Report) enter(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// Run performs one complete lifecycle. Cancelling ctx does not interrupt a
// run in progress; remote calls are bounded only by the transport's timeout.
func (a *Agent) Run(ctx context.Context) (*Report, error) {
	ctx = context.WithoutCancel(ctx)
	report := &Report{ID: uuid.New(), Started: time.Now(), State: StateStart, Transitions: []State{StateStart}}
	run := a.forRun(report.ID)

	run.log.Info("starting run")
	err := run.lifecycle(ctx, report)
	report.Duration = time.Since(report.Started)

	log := run.log.WithFields(logrus.Fields{
		"state":    report.State,
		"duration": report.Duration,
	})
	if err != nil {
		log.WithError(err).Error("run failed")
		return report, err
	}
	log.Info("run finished")
	return report, nil
}

func (a *Agent) forRun(id uuid.UUID) *Agent {
	run := *a
	run.log = a.log.WithField("run", id.String())
	return &run
}

func (a *Agent) lifecycle(ctx context.Context, report *Report) error {
	var (
		n    *node.Node
		cred *Credential
	)
	steps := []func() error{
		func() (err error) { n, err = a.BuildNode(ctx, a.cfg.NodeName); return err },
		func() (err error) { cred, err = a.EnsureRegistration(ctx, n); return err },
		func() error { _, err := a.Authenticate(ctx, n, cred); return err },
		func() error { return a.ApplyAttributes(ctx, n) },
		func() error { return a.Converge(ctx, n) },
	}

	for _, step := range steps {
		target := report.State.next()
		// Converging is entered before the convergence step does its work.
		if target == StateConverging {
			report.enter(target)
		}
		a.log.WithField("step", target).Debug("entering step")
		if err := step(); err != nil {
			report.Failed = target
			report.enter(StateFailed)
			return &StepError{Step: target, Err: err}
		}
		if target == StateConverging {
			target = StateDone
		}
		report.enter(target)
	}
	return nil
}
