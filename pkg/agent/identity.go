package agent

import (
	"context"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/facts"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/rest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BuildNode resolves the node's canonical name and returns its Node, fetched
// from the service when it exists, with the host's facts merged over it.
// explicitName takes precedence over the name found in facts.
func (a *Agent) BuildNode(ctx context.Context, explicitName string) (*node.Node, error) {
	hostFacts, err := a.cfg.Facts.Collect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to collect facts")
	}

	name := explicitName
	if name == "" {
		var ok bool
		if name, ok = hostFacts.NodeName(); !ok {
			return nil, &IdentityUnresolvedError{Tried: []string{facts.FQDN, facts.Hostname}}
		}
	}
	safe := node.SafeName(name)
	log := a.log.WithFields(logrus.Fields{"node": name, "safe-name": safe})

	n, err := a.cfg.Service.GetNode(ctx, safe)
	switch {
	case rest.IsNotFound(err):
		log.Info("node not known to service, creating")
		n = node.New(name)
	case err != nil:
		return nil, unavailable("fetch node", err)
	default:
		if err := n.Validate(safe); err != nil {
			return nil, unavailable("fetch node", err)
		}
		log.Debug("fetched node from service")
	}

	n.MergeFacts(hostFacts)
	if len(a.cfg.JSONAttributes) > 0 {
		n.Merge(a.cfg.JSONAttributes)
	}
	return n, nil
}
