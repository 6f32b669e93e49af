package session

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a control session.
type State int32

// Session states.
const (
	Closed State = iota
	Opened
	Configured
	Running
	Stopped
	Faulted
)

var stateNames = [...]string{
	Closed:     "closed",
	Opened:     "opened",
	Configured: "configured",
	Running:    "running",
	Stopped:    "stopped",
	Faulted:    "faulted",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// InvalidStateError reports an operation invalid for the current
// state. The state is left unchanged.
type InvalidStateError struct {
	Op    string
	State State
}

// Error implements error.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s invalid in state %s", e.Op, e.State)
}

// Session errors.
var (
	// ErrFaulted indicates the session latched a hardware fault.
	// Only Close is valid afterwards.
	ErrFaulted = errors.New("session faulted")
	// ErrShutdownTimeout indicates the poll loop did not acknowledge
	// the stop request within the bounded wait.
	ErrShutdownTimeout = errors.New("shutdown timeout")
)

// Watcher observes session state transitions. Called synchronously
// from whichever goroutine performs the transition; implementations
// must not call back into the session.
type Watcher func(from, to State)
