package agents

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownRole = errors.New("unknown agent role")
	ErrEmptyReply  = errors.New("empty inference reply")
)

// InferenceError reports a failed or timed-out inference call for a role.
type InferenceError struct {
	Role     Role
	Timeout  bool
	Attempts int
	Err      error
}

func (e *InferenceError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("agent %s: inference timed out after %d attempt(s): %v", e.Role, e.Attempts, e.Err)
	}
	return fmt.Sprintf("agent %s: inference failed after %d attempt(s): %v", e.Role, e.Attempts, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// CapabilityError reports a tool failure. It is never retried.
type CapabilityError struct {
	Role       Role
	Capability Capability
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("agent %s: capability %s: %v", e.Role, e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }
