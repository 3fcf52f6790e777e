// Package quality adapts the outbound video encoding to measured network
// conditions.
package quality

import (
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/BioHazard786/liteshare/internal/telemetry"
	"github.com/BioHazard786/liteshare/internal/transport"
)

// Interval is the sampling cadence of the control loop.
const Interval = 1500 * time.Millisecond

// Thresholds for classifying a tick as poor, and the hysteresis counts.
const (
	ThroughputFloor = 0.7
	MaxRTT          = 0.4
	MaxLoss         = 0.05

	DegradeAfter = 3
	UpgradeAfter = 10
)

// Sender is the outbound encoding the controller tunes.
type Sender interface {
	GetParameters() transport.SendParameters
	SetParameters(transport.SendParameters) error
	SetFrameRate(fps float64) error
}

// State is the controller's view of the session.
type State struct {
	Current     Profile
	StableTicks int
	PoorTicks   int
	LiteMode    bool
}

// Verdict is how a tick was classified.
type Verdict int

const (
	Skipped Verdict = iota
	Baseline
	Stable
	Poor
)

func (v Verdict) String() string {
	switch v {
	case Skipped:
		return "skipped"
	case Baseline:
		return "baseline"
	case Stable:
		return "stable"
	case Poor:
		return "poor"
	default:
		return "unknown"
	}
}

// TickResult describes what one tick did.
type TickResult struct {
	Verdict     Verdict
	Measurement Measurement
	// From and To differ when the tick changed profile.
	From, To Profile
}

// Transitioned reports whether the tick moved to another profile.
func (r TickResult) Transitioned() bool {
	return r.From.Name != r.To.Name
}

// Controller runs the hysteresis loop. It is driven by its owner and is not
// safe for concurrent use.
type Controller struct {
	state State
	prev  *Sample
	sink  telemetry.Sink
	log   *zap.Logger
	now   func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

func WithSink(s telemetry.Sink) Option {
	return func(c *Controller) { c.sink = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(liteMode bool, opts ...Option) *Controller {
	c := &Controller{
		state: State{Current: Initial(liteMode), LiteMode: liteMode},
		sink:  telemetry.Discard,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	return c.state
}

// SetLiteMode changes the override flag. It shapes degrade targets and the
// upgrade ceiling from the next tick on.
func (c *Controller) SetLiteMode(enabled bool) {
	c.state.LiteMode = enabled
}

// Reset starts a new measurement run at profile p.
func (c *Controller) Reset(p Profile) {
	c.state.Current = p
	c.state.StableTicks = 0
	c.state.PoorTicks = 0
	c.prev = nil
}

// Apply pushes p to sender and makes it the current profile. Counters are
// left alone.
func (c *Controller) Apply(sender Sender, p Profile) error {
	if err := ApplyProfile(sender, p, c.log); err != nil {
		return err
	}
	c.state.Current = p
	return nil
}

// Tick runs one control step against report. A nil sender, or a report with
// no outbound video, skips the tick without touching state.
func (c *Controller) Tick(report webrtc.StatsReport, sender Sender) TickResult {
	res := TickResult{Verdict: Skipped, From: c.state.Current, To: c.state.Current}
	if sender == nil {
		return res
	}

	sample, m := Measure(report, c.prev)
	// A missing stream is not read as 0 kbps: it skips rather than counting
	// as a poor tick.
	if !sample.HasOutbound {
		return res
	}
	res.Measurement = m

	hadBaseline := c.prev != nil
	c.prev = &sample
	if !hadBaseline {
		res.Verdict = Baseline
		c.publish(m)
		return res
	}

	if c.isPoor(m) {
		res.Verdict = Poor
		c.state.PoorTicks++
		c.state.StableTicks = 0
	} else {
		res.Verdict = Stable
		c.state.StableTicks++
		c.state.PoorTicks = 0
	}

	switch {
	case c.state.PoorTicks >= DegradeAfter:
		c.state.PoorTicks = 0
		c.transition(sender, Degrade(c.state.Current, c.state.LiteMode))
	case c.state.StableTicks >= UpgradeAfter:
		c.state.StableTicks = 0
		c.transition(sender, Upgrade(c.state.Current, c.state.LiteMode))
	}

	res.To = c.state.Current
	c.publish(m)
	return res
}

func (c *Controller) isPoor(m Measurement) bool {
	target := c.state.Current.TargetKbps()
	return m.Kbps < ThroughputFloor*target ||
		(m.HasRTT && m.RTT > MaxRTT) ||
		m.Loss > MaxLoss
}

func (c *Controller) transition(sender Sender, next Profile) {
	if next.Name == c.state.Current.Name {
		return
	}
	from := c.state.Current.Name
	if err := c.Apply(sender, next); err != nil {
		c.log.Warn("apply profile", zap.String("profile", next.Name), zap.Error(err))
		return
	}
	c.log.Info("quality profile changed", zap.String("from", from), zap.String("to", next.Name))
}

func (c *Controller) publish(m Measurement) {
	p := c.state.Current
	snap := telemetry.Snapshot{
		Profile:      p.Name,
		Label:        p.Label,
		MeasuredKbps: m.Kbps,
		TargetKbps:   p.TargetKbps(),
		HasRTT:       m.HasRTT,
		LossPct:      m.Loss * 100,
		LiteMode:     c.state.LiteMode,
		At:           c.now(),
	}
	if m.HasRTT {
		snap.RTTMs = m.RTT * 1000
	}
	c.sink.Publish(snap)
}

// ApplyProfile sets the bitrate cap, downscale factor and a
// maintain-resolution preference on sender, then asks for the profile's
// frame rate. A nil sender is a no-op; the frame-rate request is best
// effort.
func ApplyProfile(sender Sender, p Profile, log *zap.Logger) error {
	if sender == nil {
		return nil
	}

	params := sender.GetParameters()
	params.MaxBitrate = p.MaxBitrateBps
	params.ScaleResolutionDownBy = p.DownscaleFactor
	params.DegradationPreference = transport.MaintainResolution
	if err := sender.SetParameters(params); err != nil {
		return err
	}

	if err := sender.SetFrameRate(p.TargetFPS); err != nil && log != nil {
		log.Debug("frame rate constraint", zap.Float64("fps", p.TargetFPS), zap.Error(err))
	}
	return nil
}
