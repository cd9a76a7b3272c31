package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/agent"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/config"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/engine"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/facts"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/logging"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/metrics"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/secretstore"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/service"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logging.New("main").WithError(err).Error("nodeagent stopped")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "nodeagent",
		Usage:   "register this host with the configuration service and converge it",
		Version: version,
		// The version command replaces the flag.
		HideVersion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "path to the configuration file",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Aliases: []string{"S", "registration-url"},
				Usage:   "configuration service URL",
			},
			&cli.StringFlag{
				Name:    "node-name",
				Aliases: []string{"N"},
				Usage:   "node name to use instead of the one found in host facts",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "log level (trace, debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "log-location",
				Aliases: []string{"L"},
				Usage:   "file to log to, or - for the console",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "run once and exit",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "time between runs when not running once",
			},
			&cli.DurationFlag{
				Name:  "splay",
				Usage: "maximum random delay added to each interval",
			},
			&cli.BoolFlag{
				Name:  "noop",
				Usage: "log the compiled resources instead of converging them",
			},
			&cli.StringFlag{
				Name:    "json-attributes",
				Aliases: []string{"j"},
				Usage:   "JSON or YAML file of attributes merged into the node",
			},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the agent (default)",
				Action: runAction,
			},
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, c.App.Name, c.App.Version)
					return nil
				},
			},
		},
	}
}

// loadConfig reads the configuration file and applies flags given on the
// command line over it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("server-url") {
		cfg.RegistrationURL = c.String("server-url")
	}
	if c.IsSet("node-name") {
		cfg.NodeName = c.String("node-name")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-location") {
		cfg.LogLocation = c.String("log-location")
	}
	if c.IsSet("once") {
		cfg.Run.Once = c.Bool("once")
	}
	if c.IsSet("interval") {
		cfg.Run.Interval = c.Duration("interval").String()
	}
	if c.IsSet("splay") {
		cfg.Run.Splay = c.Duration("splay").String()
	}
	if c.IsSet("noop") {
		cfg.Engine.Noop = c.Bool("noop")
	}
	if c.IsSet("json-attributes") {
		cfg.JSONAttributes = c.String("json-attributes")
	}
	return cfg, cfg.Validate()
}

func setupLogging(cfg *config.Config) error {
	for _, setter := range []logging.Setter{
		logging.Level(cfg.LogLevel),
		logging.Format(cfg.LogFormat),
		logging.Location(cfg.LogLocation),
	} {
		if err := logging.Set(setter); err != nil {
			return err
		}
	}
	return nil
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return errors.WithMessage(err, "unable to configure logging")
	}
	log := logging.New("main")

	jsonAttrs, err := loadJSONAttributes(cfg.JSONAttributes)
	if err != nil {
		return err
	}
	svc, err := service.New(logging.New("service"), cfg.RegistrationURL, cfg.OpenIDURL, cfg.Timeout())
	if err != nil {
		return errors.WithMessage(err, "could not setup configuration service client")
	}
	secrets, err := secretstore.Open(cfg.SecretStore.Backend, cfg.SecretStore.Path, cfg.SecretStore.AgeIdentity)
	if err != nil {
		return errors.WithMessage(err, "could not open secret store")
	}
	defer secrets.Close()

	eng, err := newEngine(cfg.Engine)
	if err != nil {
		return errors.WithMessage(err, "could not setup engine")
	}

	a, err := agent.New(logging.New("agent"), agent.Config{
		Service:        svc,
		Facts:          newFactCollector(cfg.Facts),
		Secrets:        secrets,
		Engine:         eng,
		NodeName:       cfg.NodeName,
		JSONAttributes: jsonAttrs,
	})
	if err != nil {
		return errors.WithMessage(err, "initialization error")
	}

	// Signals end the loop between runs; a run in progress always completes.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := &loop{
		log:      log,
		agent:    a,
		engine:   eng,
		recorder: metrics.NewRecorder(cfg.Run.MetricsTextfile),
		once:     cfg.Run.Once,
		interval: cfg.Run.IntervalDuration(),
		splay:    cfg.Run.SplayDuration(),
	}
	return errors.WithMessage(l.run(ctx), "run error")
}

func newEngine(cfg config.Engine) (engine.Engine, error) {
	log := logging.New("engine")
	if cfg.Noop {
		return engine.NewNoop(log), nil
	}
	return engine.NewExec(log, cfg.Command, cfg.Args...)
}

func newFactCollector(cfg config.Facts) *facts.Collector {
	log := logging.New("facts")
	remote := func(src facts.Source) facts.Source {
		if ttl := cfg.CacheDuration(); ttl > 0 {
			src = facts.Cached(src, ttl)
		}
		return facts.Optional(log, src)
	}
	sources := []facts.Source{facts.NewOS(log)}
	if cfg.Hostnamed {
		sources = append(sources, remote(facts.Hostnamed{}))
	}
	if cfg.EC2 {
		sources = append(sources, remote(facts.EC2{Endpoint: cfg.EC2Endpoint}))
	}
	if len(cfg.Static) > 0 {
		sources = append(sources, facts.Static(cfg.Static))
	}
	return facts.NewCollector(log, sources...)
}

// loadJSONAttributes reads a JSON or YAML mapping of attributes. Nested
// mappings are normalized to string keys so the node stays encodable.
func loadJSONAttributes(path string) (map[string]interface{}, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read json attributes")
	}
	attrs := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &attrs); err != nil {
		return nil, errors.Wrapf(err, "unable to parse json attributes %s", path)
	}
	return node.Normalize(attrs).(map[string]interface{}), nil
}

type runner interface {
	Run(ctx context.Context) (*agent.Report, error)
}

// loop runs the agent once, or repeatedly until its context is cancelled.
type loop struct {
	log      logging.Logger
	agent    runner
	engine   engine.Engine
	recorder *metrics.Recorder
	notify   func(state string) (bool, error)

	once     bool
	interval time.Duration
	splay    time.Duration
}

func (l *loop) run(ctx context.Context) error {
	notify := l.notify
	if notify == nil {
		notify = func(state string) (bool, error) { return daemon.SdNotify(false, state) }
	}
	if !l.once {
		if _, err := notify(daemon.SdNotifyReady); err != nil {
			l.log.WithError(err).Warn("unable to notify systemd")
		}
	}

	for {
		err := l.runOnce(ctx)
		if l.once {
			return err
		}
		status := "STATUS=last run succeeded"
		if err != nil {
			status = "STATUS=last run failed: " + err.Error()
		}
		if _, nerr := notify(status); nerr != nil {
			l.log.WithError(nerr).Warn("unable to notify systemd")
		}

		wait := l.interval + l.jitter()
		l.log.WithField("next-run", wait).Debug("waiting for next run")
		select {
		case <-ctx.Done():
			l.log.Info("stopping")
			if _, nerr := notify(daemon.SdNotifyStopping); nerr != nil {
				l.log.WithError(nerr).Warn("unable to notify systemd")
			}
			return nil
		case <-time.After(wait):
		}
	}
}

func (l *loop) runOnce(ctx context.Context) error {
	report, err := l.agent.Run(ctx)
	if cerr := l.engine.Close(); cerr != nil {
		l.log.WithError(cerr).Warn("engine reported failure")
	}
	if report != nil {
		run := metrics.Run{Started: report.Started, Duration: report.Duration}
		if err != nil {
			run.Failed = report.Failed.String()
		}
		if merr := l.recorder.Record(run); merr != nil {
			l.log.WithError(merr).Warn("unable to record run metrics")
		}
	}
	return err
}

func (l *loop) jitter() time.Duration {
	if l.splay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(l.splay)))
}
