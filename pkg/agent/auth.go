package agent

import (
	"context"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/internal/logfields"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/service"
)

// Authenticate proves the node holds its credential's secret. Every failure,
// including a "not found" response, is fatal.
func (a *Agent) Authenticate(ctx context.Context, n *node.Node, cred *Credential) (*service.Session, error) {
	safe := n.SafeName()
	action, err := a.cfg.Service.StartAuth(ctx, safe)
	if err != nil {
		return nil, unavailable("start authentication", err)
	}
	a.log.WithField("action", action.Action).Debug("authentication started")

	session, err := a.cfg.Service.CompleteAuth(ctx, safe, action, cred.Secret)
	if err != nil {
		return nil, unavailable("complete authentication", err)
	}
	a.log.WithFields(logfields.Node(n)).WithField("identity", session.Identity).Info("authenticated")
	return session, nil
}
