package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is what the quality loop reports after every tick.
type Snapshot struct {
	Profile      string    `msgpack:"profile"`
	Label        string    `msgpack:"label"`
	MeasuredKbps float64   `msgpack:"measuredKbps"`
	TargetKbps   float64   `msgpack:"targetKbps"`
	RTTMs        float64   `msgpack:"rttMs"`
	HasRTT       bool      `msgpack:"hasRtt"`
	LossPct      float64   `msgpack:"lossPct"`
	LiteMode     bool      `msgpack:"liteMode"`
	At           time.Time `msgpack:"at"`
}

// Encode serializes a snapshot for the telemetry data channel.
func Encode(s Snapshot) ([]byte, error) {
	return msgpack.Marshal(&s)
}

// Decode parses a snapshot received on the telemetry data channel.
func Decode(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// String renders the snapshot as the four status lines shown to the user.
func (s Snapshot) String() string {
	rtt := "n/a"
	if s.HasRTT {
		rtt = fmt.Sprintf("%.0f ms", s.RTTMs)
	}
	lite := "OFF"
	if s.LiteMode {
		lite = "ON"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Profile: %s (%s)\n", strings.ToUpper(s.Profile), s.Label)
	fmt.Fprintf(&b, "Bitrate: %.0f kbps  |  Target ~ %.0f kbps\n", s.MeasuredKbps, s.TargetKbps)
	fmt.Fprintf(&b, "RTT: %s  |  Loss: %.1f%%\n", rtt, s.LossPct)
	fmt.Fprintf(&b, "LiteShare Mode: %s", lite)
	return b.String()
}
