// Package facts collects host identity facts as a flat key-value mapping.
package facts

import (
	"context"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// Well known fact keys.
const (
	FQDN     = "fqdn"
	Hostname = "hostname"
)

// Facts is a flat mapping of fact names to values.
type Facts map[string]string

// Source is implemented by fact collectors.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Collect gathers the source's facts.
	Collect(ctx context.Context) (Facts, error)
}

// NodeName resolves the node's canonical name, preferring the fully
// qualified domain name over the plain hostname.
func (f Facts) NodeName() (string, bool) {
	if name := f[FQDN]; name != "" {
		return name, true
	}
	if name := f[Hostname]; name != "" {
		return name, true
	}
	return "", false
}

// Collector runs its sources concurrently and merges their facts in the
// order the sources were given, later sources overriding earlier ones.
type Collector struct {
	log     logging.Logger
	sources []Source
}

func NewCollector(log logging.Logger, sources ...Source) *Collector {
	return &Collector{log: log, sources: sources}
}

// Collect gathers facts from every source. It fails if any required source
// fails; see Optional for sources that may not be available.
func (c *Collector) Collect(ctx context.Context) (Facts, error) {
	results := make([]Facts, len(c.sources))
	group, gctx := errgroup.WithContext(ctx)
	for i, src := range c.sources {
		group.Go(func() error {
			facts, err := src.Collect(gctx)
			if err != nil {
				return err
			}
			c.log.WithField("source", src.Name()).WithField("count", len(facts)).Debug("collected facts")
			results[i] = facts
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	merged := Facts{}
	for _, facts := range results {
		for k, v := range facts {
			merged[k] = v
		}
	}
	return merged, nil
}

type optional struct {
	Source
	log logging.Logger
}

// Optional wraps a source whose failure is logged and otherwise ignored.
func Optional(log logging.Logger, src Source) Source {
	return &optional{Source: src, log: log}
}

func (o *optional) Collect(ctx context.Context) (Facts, error) {
	facts, err := o.Source.Collect(ctx)
	if err != nil {
		o.log.WithError(err).WithField("source", o.Name()).Info("optional fact source unavailable")
		return Facts{}, nil
	}
	return facts, nil
}

// Static is a fixed set of facts, such as those given in configuration.
type Static Facts

func (Static) Name() string { return "static" }

func (s Static) Collect(context.Context) (Facts, error) {
	facts := make(Facts, len(s))
	for k, v := range s {
		facts[k] = v
	}
	return facts, nil
}
