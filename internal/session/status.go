package session

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

// Phase is the coordinator lifecycle: idle, joined, sharing.
type Phase int

const (
	Idle Phase = iota
	Joined
	Sharing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Joined:
		return "joined"
	case Sharing:
		return "sharing"
	default:
		return "unknown"
	}
}

// Status is the user-visible state of the session.
type Status struct {
	Phase Phase
	Text  string
	Room  string

	// Connected is true while the signaling channel is open.
	Connected bool
	LiteMode  bool
	Peer      webrtc.PeerConnectionState

	// Err is the last failure that ended or refused an operation.
	Err error
}

// Status texts.
const (
	textNotJoined    = "Not joined"
	textDisconnected = "Disconnected"
)

// Dropped reports whether the relay connection was lost or refused, as
// opposed to closed by a hang up.
func (s Status) Dropped() bool {
	return !s.Connected && errors.Is(s.Err, ErrConnection)
}
