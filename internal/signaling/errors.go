package signaling

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen      = errors.New("channel not open")
	ErrClosed       = errors.New("channel closed")
	errEmptyPayload = errors.New("empty payload")
)

// ConnectionError reports that the relay could not be reached or refused
// the WebSocket handshake.
type ConnectionError struct {
	Endpoint string
	// Status is the HTTP status of a rejected handshake, 0 otherwise.
	Status int
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("connect %s: rejected with status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
