package quality

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/liteshare/internal/telemetry"
	"github.com/BioHazard786/liteshare/internal/transport"
)

type fakeSender struct {
	params  transport.SendParameters
	fps     float64
	sets    int
	failFPS bool
	failSet bool
}

func (f *fakeSender) GetParameters() transport.SendParameters { return f.params }

func (f *fakeSender) SetParameters(p transport.SendParameters) error {
	if f.failSet {
		return errors.New("encoder gone")
	}
	f.params = p
	f.sets++
	return nil
}

func (f *fakeSender) SetFrameRate(fps float64) error {
	if f.failFPS {
		return errors.New("constraint rejected")
	}
	f.fps = fps
	return nil
}

// link produces stats reports for a simulated outbound stream, one per tick.
type link struct {
	ts    float64
	bytes uint64
	sent  uint32
}

type conditions struct {
	kbps float64
	rtt  float64
	loss float64
}

func (l *link) next(c conditions) webrtc.StatsReport {
	l.ts += float64(Interval.Milliseconds())
	l.bytes += uint64(c.kbps * 1000 / 8 * Interval.Seconds())
	l.sent += 100

	r := webrtc.StatsReport{
		"out": webrtc.OutboundRTPStreamStats{
			Timestamp:   webrtc.StatsTimestamp(l.ts),
			Type:        webrtc.StatsTypeOutboundRTP,
			Kind:        "video",
			BytesSent:   l.bytes,
			PacketsSent: l.sent,
		},
		"remote": webrtc.RemoteInboundRTPStreamStats{
			Type:        webrtc.StatsTypeRemoteInboundRTP,
			Kind:        "video",
			PacketsLost: int32(c.loss * float64(l.sent)),
		},
	}
	if c.rtt > 0 {
		r["pair"] = webrtc.ICECandidatePairStats{
			Type:                 webrtc.StatsTypeCandidatePair,
			Nominated:            true,
			CurrentRoundTripTime: c.rtt,
		}
	}
	return r
}

var (
	good = conditions{kbps: 2000}
	bad  = conditions{kbps: 10}
)

// started returns a controller that has already taken its baseline sample.
func started(t *testing.T, liteMode bool) (*Controller, *link, *fakeSender) {
	t.Helper()
	c := NewController(liteMode)
	l := &link{}
	s := &fakeSender{}
	if res := c.Tick(l.next(good), s); res.Verdict != Baseline {
		t.Fatalf("first tick verdict = %v, want baseline", res.Verdict)
	}
	return c, l, s
}

func run(c *Controller, l *link, s Sender, cond conditions, n int) {
	for i := 0; i < n; i++ {
		c.Tick(l.next(cond), s)
	}
}

func TestProfileFor(t *testing.T) {
	for _, name := range []string{Normal, Lite, Ultra} {
		p, err := ProfileFor(name)
		if err != nil || p.Name != name {
			t.Errorf("ProfileFor(%q) = %+v, %v", name, p, err)
		}
	}

	if _, err := ProfileFor("hd"); !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("err = %v, want ErrUnknownProfile", err)
	}
	if p := Lookup("hd"); p.Name != Normal {
		t.Fatalf("Lookup fallback = %q, want normal", p.Name)
	}
}

func TestThroughputZeroElapsed(t *testing.T) {
	prev := Sample{TimestampMs: 1000, BytesSent: 100, HasOutbound: true}
	cur := Sample{TimestampMs: 1000, BytesSent: 5000, HasOutbound: true}

	if got := Throughput(&prev, cur); got != 0 {
		t.Fatalf("Throughput = %v, want 0", got)
	}
	if got := Throughput(nil, cur); got != 0 {
		t.Fatalf("Throughput without previous = %v, want 0", got)
	}
	cur.TimestampMs = 2000
	cur.BytesSent = 50
	if got := Throughput(&prev, cur); got != 0 {
		t.Fatalf("Throughput with reset counters = %v, want 0", got)
	}
}

func TestMeasure(t *testing.T) {
	prev := &Sample{TimestampMs: 1000, BytesSent: 0, HasOutbound: true}
	report := webrtc.StatsReport{
		"out": webrtc.OutboundRTPStreamStats{
			Timestamp: 2000, Kind: "video", BytesSent: 150_000, PacketsSent: 200,
		},
		"audio": webrtc.OutboundRTPStreamStats{
			Timestamp: 2000, Kind: "audio", BytesSent: 999_999,
		},
		"remote": webrtc.RemoteInboundRTPStreamStats{
			Kind: "video", PacketsLost: 20, RoundTripTime: 0.25,
		},
		"pair":  webrtc.ICECandidatePairStats{Nominated: true, CurrentRoundTripTime: 0.1},
		"other": webrtc.ICECandidatePairStats{Nominated: false, CurrentRoundTripTime: 0.9},
	}

	s, m := Measure(report, prev)

	if !s.HasOutbound || s.BytesSent != 150_000 {
		t.Fatalf("sample = %+v", s)
	}
	if m.Kbps != 1200 {
		t.Errorf("kbps = %v, want 1200", m.Kbps)
	}
	if !m.HasRTT || m.RTT != 0.1 {
		t.Errorf("rtt = %v (%v), want nominated pair 0.1", m.RTT, m.HasRTT)
	}
	if m.Loss < 0.0999 || m.Loss > 0.1 {
		t.Errorf("loss = %v, want ~0.1", m.Loss)
	}
}

func TestMeasureRTTFallsBackToRemoteInbound(t *testing.T) {
	report := webrtc.StatsReport{
		"out":    webrtc.OutboundRTPStreamStats{Timestamp: 1, Kind: "video"},
		"remote": webrtc.RemoteInboundRTPStreamStats{Kind: "video", RoundTripTime: 0.3},
	}
	_, m := Measure(report, nil)
	if !m.HasRTT || m.RTT != 0.3 {
		t.Fatalf("rtt = %v (%v), want 0.3", m.RTT, m.HasRTT)
	}

	_, m = Measure(webrtc.StatsReport{"out": webrtc.OutboundRTPStreamStats{Kind: "video"}}, nil)
	if m.HasRTT || m.Loss != 0 {
		t.Fatalf("measurement without rtt/loss = %+v", m)
	}
}

func TestTickSkippedWithoutSender(t *testing.T) {
	c := NewController(false)
	l := &link{}

	res := c.Tick(l.next(bad), nil)
	if res.Verdict != Skipped {
		t.Fatalf("verdict = %v, want skipped", res.Verdict)
	}
	if c.State() != (State{Current: Lookup(Normal)}) {
		t.Fatalf("state changed: %+v", c.State())
	}

	// Reports with no outbound stream never count as poor ticks.
	for i := 0; i < 5; i++ {
		res = c.Tick(webrtc.StatsReport{}, &fakeSender{})
		if res.Verdict != Skipped {
			t.Fatalf("verdict without outbound stats = %v, want skipped", res.Verdict)
		}
	}
	if c.State() != (State{Current: Lookup(Normal)}) {
		t.Fatalf("empty reports changed state: %+v", c.State())
	}
}

func TestDegradeWithoutLiteMode(t *testing.T) {
	c, l, s := started(t, false)

	run(c, l, s, bad, 2)
	if c.State().Current.Name != Normal {
		t.Fatalf("degraded after 2 poor ticks")
	}
	run(c, l, s, bad, 1)
	if got := c.State().Current.Name; got != Lite {
		t.Fatalf("profile = %s, want lite", got)
	}
	if s.params.MaxBitrate != 300_000 || s.params.ScaleResolutionDownBy != 1.5 ||
		s.params.DegradationPreference != transport.MaintainResolution || s.fps != 8 {
		t.Fatalf("sender not tuned to lite: %+v fps=%v", s.params, s.fps)
	}

	run(c, l, s, bad, 3)
	if got := c.State().Current.Name; got != Ultra {
		t.Fatalf("profile = %s, want ultra", got)
	}

	run(c, l, s, bad, 6)
	if got := c.State().Current.Name; got != Ultra {
		t.Fatalf("profile = %s, ultra must stay ultra", got)
	}
}

func TestUpgradeWithoutLiteMode(t *testing.T) {
	c, l, s := started(t, false)
	run(c, l, s, bad, 6)

	run(c, l, s, good, 9)
	if got := c.State().Current.Name; got != Ultra {
		t.Fatalf("upgraded after 9 stable ticks: %s", got)
	}
	run(c, l, s, good, 1)
	if got := c.State().Current.Name; got != Lite {
		t.Fatalf("profile = %s, want lite", got)
	}
	run(c, l, s, good, 10)
	if got := c.State().Current.Name; got != Normal {
		t.Fatalf("profile = %s, want normal", got)
	}
}

func TestLiteModeShortcutAndCeiling(t *testing.T) {
	c, l, s := started(t, false)
	c.SetLiteMode(true)

	run(c, l, s, bad, 3)
	if got := c.State().Current.Name; got != Ultra {
		t.Fatalf("profile = %s, lite mode must degrade normal straight to ultra", got)
	}

	run(c, l, s, good, 10)
	if got := c.State().Current.Name; got != Lite {
		t.Fatalf("profile = %s, want lite", got)
	}

	run(c, l, s, good, 50)
	if got := c.State().Current.Name; got != Lite {
		t.Fatalf("profile = %s, lite mode must pin the ceiling at lite", got)
	}

	c.SetLiteMode(false)
	run(c, l, s, good, 10)
	if got := c.State().Current.Name; got != Normal {
		t.Fatalf("profile = %s, want normal once lite mode is off", got)
	}
}

func TestStableTickResetsPoorCounter(t *testing.T) {
	c, l, s := started(t, false)

	run(c, l, s, bad, 2)
	run(c, l, s, good, 1)
	if c.State().PoorTicks != 0 || c.State().StableTicks != 1 {
		t.Fatalf("counters = %+v", c.State())
	}
	run(c, l, s, bad, 2)
	if got := c.State().Current.Name; got != Normal {
		t.Fatalf("profile = %s, interrupted run must not degrade", got)
	}
	run(c, l, s, bad, 1)
	if got := c.State().Current.Name; got != Lite {
		t.Fatalf("profile = %s, want lite after 3 consecutive poor ticks", got)
	}
}

func TestPoorClassification(t *testing.T) {
	tests := []struct {
		name string
		cond conditions
		want Verdict
	}{
		{"at target", conditions{kbps: 1200}, Stable},
		{"75 percent", conditions{kbps: 900}, Stable},
		{"just under 70 percent", conditions{kbps: 830}, Poor},
		{"high rtt", conditions{kbps: 1200, rtt: 0.5}, Poor},
		{"rtt at limit", conditions{kbps: 1200, rtt: 0.4}, Stable},
		{"lossy", conditions{kbps: 1200, loss: 0.08}, Poor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, l, s := started(t, false)
			if res := c.Tick(l.next(tt.cond), s); res.Verdict != tt.want {
				t.Fatalf("verdict = %v, want %v (measurement %+v)", res.Verdict, tt.want, res.Measurement)
			}
		})
	}
}

// Transitions move one level at a time except the lite-mode shortcut from
// normal to ultra.
func TestTransitionsNeverSkipLevels(t *testing.T) {
	rank := map[string]int{Normal: 0, Lite: 1, Ultra: 2}

	c, l, s := started(t, false)
	pattern := []conditions{bad, bad, bad, good, bad, bad, bad, bad, bad}
	for i := 0; i < 400; i++ {
		cond := pattern[i%len(pattern)]
		if i%97 > 60 {
			cond = good
		}
		res := c.Tick(l.next(cond), s)
		if !res.Transitioned() {
			continue
		}
		step := rank[res.To.Name] - rank[res.From.Name]
		if step != 1 && step != -1 {
			t.Fatalf("tick %d jumped %s -> %s", i, res.From.Name, res.To.Name)
		}
	}
}

func TestScenarioDropTo700Kbps(t *testing.T) {
	var snaps []telemetry.Snapshot
	c := NewController(false, WithSink(telemetry.SinkFunc(func(s telemetry.Snapshot) {
		snaps = append(snaps, s)
	})))
	l := &link{}
	s := &fakeSender{}

	c.Tick(l.next(conditions{kbps: 900}), s)
	run(c, l, s, conditions{kbps: 900}, 5)
	if got := c.State().Current.Name; got != Normal {
		t.Fatalf("profile = %s at 900 kbps, want normal", got)
	}

	run(c, l, s, conditions{kbps: 700}, 3)
	if got := c.State().Current.Name; got != Lite {
		t.Fatalf("profile = %s after 3 ticks at 700 kbps, want lite", got)
	}

	if len(snaps) != 9 {
		t.Fatalf("published %d snapshots, want 9", len(snaps))
	}
	last := snaps[len(snaps)-1]
	if last.Profile != Lite || last.TargetKbps != 300 {
		t.Fatalf("last snapshot = %+v", last)
	}
	if last.MeasuredKbps < 699 || last.MeasuredKbps > 701 {
		t.Fatalf("measured = %v, want ~700", last.MeasuredKbps)
	}
}

func TestApplyProfile(t *testing.T) {
	if err := ApplyProfile(nil, Lookup(Lite), nil); err != nil {
		t.Fatalf("nil sender: %v", err)
	}

	s := &fakeSender{failFPS: true}
	if err := ApplyProfile(s, Lookup(Ultra), nil); err != nil {
		t.Fatalf("frame rate failure must be swallowed: %v", err)
	}
	if s.params.MaxBitrate != 150_000 || s.params.ScaleResolutionDownBy != 2 {
		t.Fatalf("params = %+v", s.params)
	}

	s = &fakeSender{failSet: true}
	if err := ApplyProfile(s, Lookup(Ultra), nil); err == nil {
		t.Fatal("expected SetParameters error")
	}
}

func TestFailedApplyKeepsProfile(t *testing.T) {
	c, l, s := started(t, false)
	s.failSet = true

	run(c, l, s, bad, 3)
	if got := c.State().Current.Name; got != Normal {
		t.Fatalf("profile = %s, failed apply must not change current", got)
	}
}
