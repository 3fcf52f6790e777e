package session

import (
	"errors"
	"fmt"
)

var (
	ErrConnection  = errors.New("could not reach the relay")
	ErrCapture     = errors.New("screen capture unavailable")
	ErrNegotiation = errors.New("negotiation failed")
	ErrNotJoined   = errors.New("not joined to a room")
	ErrInvalidRoom = errors.New("invalid room id")
	ErrStopped     = errors.New("session stopped")

	errNoSource = errors.New("no capture source configured")
)

// Error is what the public operations return. Err is one of the sentinels
// above; Cause, when set, is the underlying failure.
type Error struct {
	Op      string
	Err     error
	Cause   error
	Details string
}

func (e *Error) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Err, e.Cause)
	case e.Details != "":
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// Status renders the error as the one-line text shown to the user.
func (e *Error) Status() string {
	switch {
	case errors.Is(e.Err, ErrConnection):
		return "Connection failed"
	case errors.Is(e.Err, ErrCapture):
		return "Screen capture unavailable"
	case errors.Is(e.Err, ErrInvalidRoom):
		return "Invalid room id"
	case errors.Is(e.Err, ErrNotJoined) && e.Details != "":
		return "Join rejected: " + e.Details
	case errors.Is(e.Err, ErrNegotiation):
		return "Negotiation failed"
	default:
		return e.Err.Error()
	}
}

func newError(op string, err, cause error) *Error {
	return &Error{Op: op, Err: err, Cause: cause}
}
