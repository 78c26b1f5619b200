package peer

import (
	"errors"
	"fmt"

	"github.com/TuringBitChain/TBCNODE/hnwire"
)

var (
	// ErrNotConnected is returned when sending on a connection that is
	// not connected yet or already closed.
	ErrNotConnected = errors.New("not connected")

	// ErrWaitTimeout is returned when a wait helper's condition did not
	// become true before its deadline.
	ErrWaitTimeout = errors.New("wait timed out")

	// ErrSingleInv is returned by WaitForInv when given anything but a
	// single inventory vector.
	ErrSingleInv = errors.New("exactly one inventory vector expected")

	// ErrNoScheduler is returned when creating a connection or callbacks
	// without a scheduler to register with.
	ErrNoScheduler = errors.New("no scheduler")
)

// EarlyDisconnectError is returned when the connection or the node's RPC
// server went away before a test scenario completed.
type EarlyDisconnectError struct {
	Cause error
}

// Error returns a human readable string describing the error.
func (e *EarlyDisconnectError) Error() string {
	return fmt.Sprintf("early disconnect: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *EarlyDisconnectError) Unwrap() error {
	return e.Cause
}

// HookError is returned when a hook failed to process a delivered message.
type HookError struct {
	Command hnwire.Command
	Err     error
}

// Error returns a human readable string describing the error.
func (e *HookError) Error() string {
	return fmt.Sprintf("%v hook failed: %v", e.Command, e.Err)
}

// Unwrap returns the error of the hook.
func (e *HookError) Unwrap() error {
	return e.Err
}
