package call

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState means a negotiation operation was invoked outside its
	// legal source state. This is a programming error in the routing layer,
	// never a retryable condition.
	ErrInvalidState = errors.New("invalid negotiation state")

	// ErrPermissionDenied means local media access was refused. Fatal to
	// call start; no retry is attempted.
	ErrPermissionDenied = errors.New("media permission denied")

	// ErrPeerDisconnected means the media path to the remote peer failed
	// after the call was established.
	ErrPeerDisconnected = errors.New("peer disconnected")

	ErrTransportClosed = errors.New("transport closed")
	ErrSessionClosed   = errors.New("session closed")
)

// CallError wraps a failure with the operation that produced it.
type CallError struct {
	Op      string
	Err     error
	Details string
}

func (e *CallError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *CallError {
	return &CallError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *CallError {
	return &CallError{Op: op, Err: err, Details: details}
}
