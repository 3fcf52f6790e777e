package telemetry

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeChannel struct {
	sent [][]byte
	err  error
}

func (f *fakeChannel) Send(b []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, b)
	return nil
}

func TestChannelSinkEncodesSnapshots(t *testing.T) {
	dc := &fakeChannel{}
	sink := NewChannelSink(dc, nil)

	want := Snapshot{
		Profile:      "lite",
		Label:        "Lite",
		MeasuredKbps: 240,
		TargetKbps:   300,
		RTTMs:        120,
		HasRTT:       true,
		LossPct:      1.5,
		LiteMode:     true,
		At:           time.Unix(1700000000, 0).UTC(),
	}
	sink.Publish(want)

	if len(dc.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(dc.sent))
	}
	got, err := Decode(dc.sent[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.At.Equal(want.At) {
		t.Fatalf("At = %v, want %v", got.At, want.At)
	}
	got.At = want.At
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestChannelSinkSwallowsSendErrors(t *testing.T) {
	sink := NewChannelSink(&fakeChannel{err: errors.New("closed")}, nil)
	sink.Publish(Snapshot{Profile: "normal"})
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xc1}); err == nil {
		t.Fatal("expected error for invalid msgpack")
	}
}

func TestFanout(t *testing.T) {
	f := NewFanout()
	var a, b int
	f.Set("a", SinkFunc(func(Snapshot) { a++ }))
	f.Set("b", SinkFunc(func(Snapshot) { b++ }))

	f.Publish(Snapshot{})
	f.Remove("b")
	f.Publish(Snapshot{})

	if a != 2 || b != 1 {
		t.Fatalf("a=%d b=%d, want 2 and 1", a, b)
	}
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{Profile: "ultra", Label: "Ultra Lite", MeasuredKbps: 90, TargetKbps: 150, LossPct: 6}
	out := s.String()

	for _, want := range []string{"Profile: ULTRA (Ultra Lite)", "Target ~ 150 kbps", "RTT: n/a", "Loss: 6.0%", "LiteShare Mode: OFF"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}
