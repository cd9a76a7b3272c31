package agent

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/internal/logfields"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/rest"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/secretstore"
	"github.com/pkg/errors"
)

const (
	// registrationCategory is the secret store category credentials live in.
	registrationCategory = "registration"

	secretLength   = 40
	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Credential is the secret a node proves its identity with.
type Credential struct {
	SafeName string
	Secret   string
}

func (c *Credential) String() string {
	return fmt.Sprintf("credential(%s)", c.SafeName)
}

type registrationBlob struct {
	Secret string `json:"secret"`
}

// EnsureRegistration returns the node's credential, registering the node
// with a newly generated secret when the service has no registration for it.
// The secret is stored locally before the service learns of it.
func (a *Agent) EnsureRegistration(ctx context.Context, n *node.Node) (*Credential, error) {
	safe := n.SafeName()
	log := a.log.WithFields(logfields.Node(n))

	_, err := a.cfg.Service.GetRegistration(ctx, safe)
	switch {
	case err == nil:
		log.Debug("node is registered, loading secret")
		return a.loadCredential(safe)
	case !rest.IsNotFound(err):
		return nil, unavailable("fetch registration", err)
	}

	log.Info("registering node")
	secret, err := generateSecret(a.rand)
	if err != nil {
		return nil, err
	}
	blob, err := json.Marshal(registrationBlob{Secret: secret})
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode registration")
	}
	if err := a.cfg.Secrets.Store(registrationCategory, safe, blob); err != nil {
		return nil, errors.Wrap(err, "unable to store registration secret")
	}
	if err := a.cfg.Service.CreateRegistration(ctx, safe, secret); err != nil {
		return nil, unavailable("create registration", err)
	}
	return &Credential{SafeName: safe, Secret: secret}, nil
}

func (a *Agent) loadCredential(safe string) (*Credential, error) {
	blob, err := a.cfg.Secrets.Load(registrationCategory, safe)
	if secretstore.IsNotFound(err) {
		return nil, &ConsistencyFault{SafeName: safe, Err: err}
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to load registration secret")
	}
	var reg registrationBlob
	if err := json.Unmarshal(blob, &reg); err != nil {
		return nil, errors.Wrap(err, "unable to decode registration secret")
	}
	if reg.Secret == "" {
		return nil, &ConsistencyFault{SafeName: safe, Err: errors.New("stored secret is empty")}
	}
	return &Credential{SafeName: safe, Secret: reg.Secret}, nil
}

func generateSecret(r io.Reader) (string, error) {
	limit := big.NewInt(int64(len(secretAlphabet)))
	secret := make([]byte, secretLength)
	for i := range secret {
		n, err := rand.Int(r, limit)
		if err != nil {
			return "", errors.Wrap(err, "unable to generate secret")
		}
		secret[i] = secretAlphabet[n.Int64()]
	}
	return string(secret), nil
}
