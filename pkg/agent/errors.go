package agent

import (
	"fmt"
	"strings"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/attributes"
)

// StepError is returned by Run and names the lifecycle step that failed.
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
func (e *StepError) Cause() error  { return e.Err }

// IdentityUnresolvedError is returned when no node name was given and the
// host facts carry no usable name.
type IdentityUnresolvedError struct {
	Tried []string
}

func (e *IdentityUnresolvedError) Error() string {
	return fmt.Sprintf("unable to resolve node name from facts %s", strings.Join(e.Tried, ", "))
}

// ServiceUnavailableError wraps any failed remote call other than the "not
// found" responses that select creation.
type ServiceUnavailableError struct {
	Op  string
	Err error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }
func (e *ServiceUnavailableError) Cause() error  { return e.Err }

// ConsistencyFault is returned when the service holds a registration for the
// node but the local secret store has no secret for it. The agent never
// generates a replacement secret in this case; an operator must either
// restore the secret or remove the remote registration.
type ConsistencyFault struct {
	SafeName string
	Err      error
}

func (e *ConsistencyFault) Error() string {
	return fmt.Sprintf("node %q is registered with the service but its secret is missing locally: %v", e.SafeName, e.Err)
}

func (e *ConsistencyFault) Unwrap() error { return e.Err }
func (e *ConsistencyFault) Cause() error  { return e.Err }

// AttributeExecutionError reports the attribute file statement that failed.
type AttributeExecutionError = attributes.ExecutionError

func unavailable(op string, err error) error {
	return &ServiceUnavailableError{Op: op, Err: err}
}
