// Package service binds the configuration service's node, registration,
// authentication, attribute and compile endpoints.
package service

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/attributes"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/logging"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/node"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/resource"
	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/rest"
	"github.com/pkg/errors"
)

// Registration is the service's record that a node has registered. The
// service never returns the secret itself.
type Registration struct {
	ID string `json:"id"`
}

// AuthAction is the continuation returned when starting authentication.
type AuthAction struct {
	Action string `json:"action"`
}

// Session is the outcome of a completed authentication handshake. The
// transport carries the session itself as cookies.
type Session struct {
	Identity        string
	Action          string
	Established     time.Time
	CompleteAuthURL string
}

// Compiled is the compile response for a node.
type Compiled struct {
	Node       *node.Node      `json:"node"`
	Collection *resource.Graph `json:"collection"`
}

// Client talks to the registration and openid endpoints of the service.
type Client struct {
	log          logging.Logger
	registration *rest.Client
	openid       *rest.Client
	openidURL    string
}

// New returns a Client for the given endpoints. The two rest clients share a
// cookie jar so the authenticated session covers every later call.
func New(log logging.Logger, registrationURL, openidURL string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create cookie jar")
	}
	hc := &http.Client{Jar: jar, Timeout: timeout}

	reg, err := rest.New(log.WithField("endpoint", "registration"), registrationURL, hc)
	if err != nil {
		return nil, err
	}
	oid, err := rest.New(log.WithField("endpoint", "openid"), openidURL, hc)
	if err != nil {
		return nil, err
	}
	return &Client{log: log, registration: reg, openid: oid, openidURL: openidURL}, nil
}

// IdentityURL is the openid identity claimed for a node.
func (c *Client) IdentityURL(safeName string) string {
	return strings.TrimRight(c.openidURL, "/") + "/openid/server/node/" + safeName
}

func (c *Client) GetNode(ctx context.Context, safeName string) (*node.Node, error) {
	var n node.Node
	if err := c.registration.Get(ctx, "nodes/"+safeName, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) SaveNode(ctx context.Context, n *node.Node) error {
	return c.registration.Put(ctx, "nodes/"+n.SafeName(), n, nil)
}

func (c *Client) GetRegistration(ctx context.Context, safeName string) (*Registration, error) {
	var reg Registration
	if err := c.registration.Get(ctx, "registrations/"+safeName, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (c *Client) CreateRegistration(ctx context.Context, safeName, secret string) error {
	body := map[string]string{
		"id":       safeName,
		"password": secret,
	}
	return c.registration.Post(ctx, "registrations", body, nil)
}

// StartAuth announces the node's identity claim.
func (c *Client) StartAuth(ctx context.Context, safeName string) (*AuthAction, error) {
	body := map[string]string{
		"openid_identifier": c.IdentityURL(safeName),
		"submit":            "Verify",
	}
	var action AuthAction
	if err := c.registration.Post(ctx, "openid/consumer/start", body, &action); err != nil {
		return nil, err
	}
	if action.Action == "" {
		return nil, errors.New("authentication start returned no continuation action")
	}
	return &action, nil
}

// CompleteAuth submits the secret to the continuation action.
func (c *Client) CompleteAuth(ctx context.Context, safeName string, action *AuthAction, secret string) (*Session, error) {
	target, err := c.openid.Resolve(action.Action)
	if err != nil {
		return nil, err
	}
	if err := c.openid.Post(ctx, target, map[string]string{"password": secret}, nil); err != nil {
		return nil, err
	}
	return &Session{
		Identity:        c.IdentityURL(safeName),
		Action:          action.Action,
		CompleteAuthURL: target,
		Established:     time.Now(),
	}, nil
}

func (c *Client) ListAttributeFiles(ctx context.Context) ([]attributes.File, error) {
	var files []attributes.File
	if err := c.registration.Get(ctx, "cookbooks/_attribute_files", &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Client) Compile(ctx context.Context, safeName string) (*Compiled, error) {
	var compiled Compiled
	if err := c.registration.Get(ctx, "nodes/"+safeName+"/compile", &compiled); err != nil {
		return nil, err
	}
	if compiled.Node == nil {
		return nil, errors.New("compile response has no node")
	}
	if compiled.Collection == nil {
		compiled.Collection = &resource.Graph{}
	}
	return &compiled, nil
}
