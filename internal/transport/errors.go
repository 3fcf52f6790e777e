package transport

import (
	"errors"
	"fmt"
)

var (
	ErrSenderAttached   = errors.New("a video sender is already attached")
	ErrNotAwaiting      = errors.New("not awaiting an answer")
	ErrNoPeerConnection = errors.New("peer connection not created")
)

// Error records the transport operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}
