package signaling

import (
	"encoding/json"
	"regexp"

	"github.com/pion/webrtc/v4"
)

// Message represents all WebSocket messages between clients and the relay.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// RoomID is only read by the relay, for browser clients that put the
	// room next to the type instead of inside the join payload.
	RoomID string `json:"roomId,omitempty"`
}

// Message type constants.
const (
	TypeJoin       = "join"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
	TypeOffer      = "offer"
	TypeAnswer     = "answer"
	TypeICE        = "ice"
	TypeError      = "error"
)

// Reasons carried by relay error messages.
const (
	ReasonRoomFull    = "room is full"
	ReasonInvalidRoom = "invalid room id"
	ReasonNotJoined   = "join a room first"
)

// JoinPayload is sent by a client to enter a room.
type JoinPayload struct {
	RoomID string `json:"roomId"`
}

// DescriptionPayload carries an offer or answer.
type DescriptionPayload struct {
	SDP webrtc.SessionDescription `json:"sdp"`
}

// ErrorPayload represents error messages from the relay.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage creates a message with a JSON encoded payload. A nil payload
// produces a bare {type} message.
func NewMessage(t string, payload any) (*Message, error) {
	msg := &Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg.Payload = b
	return msg, nil
}

// DecodePayload decodes the message payload into the provided struct
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return errEmptyPayload
	}
	return json.Unmarshal(m.Payload, v)
}

// Join builds a join message for roomID.
func Join(roomID string) *Message {
	msg, _ := NewMessage(TypeJoin, JoinPayload{RoomID: roomID})
	return msg
}

// Offer builds an offer message.
func Offer(desc webrtc.SessionDescription) *Message {
	msg, _ := NewMessage(TypeOffer, DescriptionPayload{SDP: desc})
	return msg
}

// Answer builds an answer message.
func Answer(desc webrtc.SessionDescription) *Message {
	msg, _ := NewMessage(TypeAnswer, DescriptionPayload{SDP: desc})
	return msg
}

// ICE builds a trickle candidate message.
func ICE(c webrtc.ICECandidateInit) *Message {
	msg, _ := NewMessage(TypeICE, c)
	return msg
}

// Error builds a relay error message.
func Error(reason string) *Message {
	msg, _ := NewMessage(TypeError, ErrorPayload{Error: reason})
	return msg
}

var roomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidRoomID reports whether id is 1-64 characters of letters, digits,
// hyphens and underscores.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}
