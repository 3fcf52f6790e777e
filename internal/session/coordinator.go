// Package session runs one screen-sharing call: signaling, the peer
// connection and the quality loop, all driven from a single event loop.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/BioHazard786/liteshare/internal/capture"
	"github.com/BioHazard786/liteshare/internal/quality"
	"github.com/BioHazard786/liteshare/internal/signaling"
	"github.com/BioHazard786/liteshare/internal/telemetry"
	"github.com/BioHazard786/liteshare/internal/transport"
)

// Channel is the signaling channel the coordinator drives.
type Channel interface {
	OnMessage(func(*signaling.Message))
	OnClose(func(error))
	Connect(ctx context.Context) error
	Send(*signaling.Message)
	Close() error
	State() signaling.State
}

// Dialer creates an unconnected channel for endpoint.
type Dialer func(endpoint string) Channel

// Config wires the coordinator to its collaborators.
type Config struct {
	// Endpoint is the relay URL, credential included.
	Endpoint  string
	Transport transport.Config

	// Capture opens the shared video. Without one StartShare fails.
	Capture        capture.Source
	CaptureOptions capture.Options

	LiteMode      bool
	StatsInterval time.Duration

	Dial   Dialer
	Logger *zap.Logger
}

// Observer receives notifications from the event loop. Callbacks run on the
// loop and must return quickly.
type Observer struct {
	OnStatus func(Status)
	// Telemetry receives the local quality snapshots while sharing.
	Telemetry telemetry.Sink
	// OnRemoteTrack is called when the peer's video arrives.
	OnRemoteTrack func(*webrtc.TrackRemote)
	// OnRemoteCleared is called when the peer leaves or the call ends.
	OnRemoteCleared func()
	// OnRemoteTelemetry receives the peer's snapshots. It runs on a pion
	// goroutine.
	OnRemoteTelemetry func(telemetry.Snapshot)
}

const peerSink = "peer"

// Coordinator owns the channel, the transport, the outbound sender and the
// quality controller for one call. All of them are touched only from Run.
type Coordinator struct {
	id  string
	cfg Config
	obs Observer
	log *zap.Logger

	cmds   chan func()
	events chan any
	done   chan struct{}
	runMu  sync.Mutex
	ran    bool

	// loop-owned
	channel   Channel
	room      string
	tr        *transport.Session
	sender    *transport.Sender
	ctrl      *quality.Controller
	fanout    *telemetry.Fanout
	ticker    *time.Ticker
	tickC     <-chan time.Time
	liteMode  bool
	sharing   bool
	peerState webrtc.PeerConnectionState

	// telemetryDC is read from pion callbacks.
	telemetryDC atomic.Pointer[webrtc.DataChannel]

	statusMu sync.RWMutex
	status   Status
}

type (
	inboundEvent struct {
		ch  Channel
		msg *signaling.Message
	}
	closedEvent struct {
		ch  Channel
		err error
	}
	candidateEvent struct{ c webrtc.ICECandidateInit }
	trackEvent     struct{ track *webrtc.TrackRemote }
	dataEvent      struct{ dc *webrtc.DataChannel }
	stateEvent     struct{ state webrtc.PeerConnectionState }
)

// New creates an idle coordinator. Run must be started before any operation
// completes.
func New(cfg Config, obs Observer) *Coordinator {
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = quality.Interval
	}
	if obs.Telemetry == nil {
		obs.Telemetry = telemetry.Discard
	}

	id := uuid.NewString()
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session", id))

	if cfg.Dial == nil {
		chLog := log.Named("signaling")
		cfg.Dial = func(endpoint string) Channel {
			return signaling.NewChannel(endpoint, signaling.WithLogger(chLog))
		}
	}

	c := &Coordinator{
		id:       id,
		cfg:      cfg,
		obs:      obs,
		log:      log,
		cmds:     make(chan func()),
		events:   make(chan any),
		done:     make(chan struct{}),
		fanout:   telemetry.NewFanout(),
		liteMode: cfg.LiteMode,
		status:   Status{Phase: Idle, Text: textNotJoined, LiteMode: cfg.LiteMode},
	}
	c.fanout.Set("local", obs.Telemetry)
	c.ctrl = quality.NewController(cfg.LiteMode,
		quality.WithSink(c.fanout),
		quality.WithLogger(log.Named("quality")),
	)

	trCfg := cfg.Transport
	if trCfg.Logger == nil {
		trCfg.Logger = log.Named("transport")
	}
	c.tr = transport.New(trCfg, transport.Handlers{
		OnCandidate:   func(ic webrtc.ICECandidateInit) { go c.post(candidateEvent{ic}) },
		OnTrack:       func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) { go c.post(trackEvent{t}) },
		OnDataChannel: func(dc *webrtc.DataChannel) { go c.post(dataEvent{dc}) },
		OnStateChange: func(s webrtc.PeerConnectionState) { go c.post(stateEvent{s}) },
	})
	return c
}

// ID identifies this coordinator in logs.
func (c *Coordinator) ID() string {
	return c.id
}

// Status returns a copy of the current user-visible state.
func (c *Coordinator) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Run drives the event loop until ctx is cancelled, then hangs up. It may
// only be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runMu.Lock()
	if c.ran {
		c.runMu.Unlock()
		return ErrStopped
	}
	c.ran = true
	c.runMu.Unlock()

	defer close(c.done)
	c.log.Debug("coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.hangUp()
			return nil
		case cmd := <-c.cmds:
			cmd()
		case ev := <-c.events:
			c.handleEvent(ev)
		case <-c.tickC:
			c.tick()
		}
	}
}

// post hands an event to the loop, giving up once the loop has exited.
func (c *Coordinator) post(ev any) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// do runs fn on the loop and waits for its result.
func (c *Coordinator) do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	select {
	case c.cmds <- func() { res <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
	return <-res
}

// Join connects to the relay and enters room. It is a no-op while the
// channel is already open.
func (c *Coordinator) Join(ctx context.Context, room string) error {
	return c.do(ctx, func() error { return c.join(ctx, room) })
}

// StartShare captures the screen and starts sending it.
func (c *Coordinator) StartShare(ctx context.Context) error {
	return c.do(ctx, c.startShare)
}

// StopShare stops sending the screen. It is a no-op when not sharing.
func (c *Coordinator) StopShare(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.stopShare()
		c.publishStatus("Sharing stopped")
		return nil
	})
}

// HangUp ends the call from any state and returns to idle.
func (c *Coordinator) HangUp(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.hangUp()
		return nil
	})
}

// SetLiteMode toggles the lite override. While sharing, lite (on) or normal
// (off) is applied at once; the ceiling it implies governs later ticks.
func (c *Coordinator) SetLiteMode(ctx context.Context, enabled bool) error {
	return c.do(ctx, func() error {
		c.setLiteMode(enabled)
		return nil
	})
}

func (c *Coordinator) join(ctx context.Context, room string) error {
	if c.channel != nil && c.channel.State() == signaling.StateOpen {
		return nil
	}
	if !signaling.ValidRoomID(room) {
		err := &Error{Op: "join", Err: ErrInvalidRoom, Details: room}
		c.fail(err)
		return err
	}

	ch := c.cfg.Dial(c.cfg.Endpoint)
	ch.OnMessage(func(m *signaling.Message) { c.post(inboundEvent{ch, m}) })
	// OnClose may fire on the loop itself, from Connect or Close.
	ch.OnClose(func(err error) { go c.post(closedEvent{ch, err}) })
	c.channel = ch

	c.publishStatus("Connecting")
	if err := ch.Connect(ctx); err != nil {
		c.channel = nil
		serr := newError("join", ErrConnection, err)
		c.fail(serr)
		return serr
	}

	c.room = room
	ch.Send(signaling.Join(room))
	c.log.Info("joined room", zap.String("room", room))
	c.publishStatus(fmt.Sprintf("Joined %q", room))

	// Sharing before the join: the peer may already be waiting.
	if c.sharing {
		c.offer()
	}
	return nil
}

func (c *Coordinator) startShare() error {
	if c.sharing {
		return nil
	}

	if c.cfg.Capture == nil {
		serr := newError("start share", ErrCapture, errNoSource)
		c.fail(serr)
		return serr
	}

	opts := c.cfg.CaptureOptions
	if opts.Logger == nil {
		opts.Logger = c.log.Named("capture")
	}
	track, err := c.cfg.Capture.Open(opts)
	if err != nil {
		serr := newError("start share", ErrCapture, err)
		c.fail(serr)
		return serr
	}

	sender, err := c.tr.AttachLocalTrack(track)
	if err != nil {
		track.Stop()
		serr := newError("start share", ErrNegotiation, err)
		c.fail(serr)
		return serr
	}
	c.sender = sender
	c.sharing = true
	c.openTelemetryChannel()

	initial := quality.Initial(c.liteMode)
	c.ctrl.Reset(initial)
	if err := c.ctrl.Apply(sender, initial); err != nil {
		c.log.Warn("apply initial profile", zap.Error(err))
	}

	c.offer()
	c.startTicker()
	c.publishStatus("Sharing screen")
	return nil
}

// stopShare cancels the tick before the sender goes away.
func (c *Coordinator) stopShare() {
	if !c.sharing {
		return
	}
	c.stopTicker()

	if err := c.tr.DetachLocalTrack(c.sender); err != nil {
		c.log.Debug("detach track", zap.Error(err))
	}
	c.sender = nil
	c.sharing = false
	c.closeTelemetryChannel()
}

// hangUp tears down in order: tick, transport, channel.
func (c *Coordinator) hangUp() {
	c.stopShare()

	if err := c.tr.Close(); err != nil {
		c.log.Debug("close transport", zap.Error(err))
	}
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	c.room = ""
	c.peerState = webrtc.PeerConnectionStateUnknown
	c.fanout.Remove(peerSink)
	c.clearRemote()

	c.setStatus(func(s *Status) {
		*s = Status{Phase: Idle, Text: textNotJoined, LiteMode: c.liteMode}
	})
}

func (c *Coordinator) setLiteMode(enabled bool) {
	c.liteMode = enabled
	c.ctrl.SetLiteMode(enabled)

	if c.sharing {
		p := quality.Initial(enabled)
		if err := c.ctrl.Apply(c.sender, p); err != nil {
			c.log.Warn("apply profile", zap.String("profile", p.Name), zap.Error(err))
		}
	}

	text := "Lite mode off"
	if enabled {
		text = "Lite mode on"
	}
	c.publishStatus(text)
}

func (c *Coordinator) startTicker() {
	c.stopTicker()
	c.ticker = time.NewTicker(c.cfg.StatsInterval)
	c.tickC = c.ticker.C
}

// stopTicker guarantees no tick runs after it returns: the loop is the only
// reader of tickC.
func (c *Coordinator) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.tickC = nil
}

func (c *Coordinator) tick() {
	if c.sender == nil {
		return
	}
	res := c.ctrl.Tick(c.tr.GetStats(), c.sender)
	if res.Transitioned() {
		c.publishStatus(fmt.Sprintf("Quality: %s", res.To.Label))
	}
}

// offer starts negotiation as offerer. Without a joined channel the offer
// is only set locally and the send is dropped.
func (c *Coordinator) offer() {
	desc, err := c.tr.CreateOffer()
	if err != nil {
		c.fail(newError("offer", ErrNegotiation, err))
		return
	}
	c.send(signaling.Offer(desc))
}

func (c *Coordinator) send(msg *signaling.Message) {
	if c.channel == nil {
		return
	}
	c.channel.Send(msg)
}

// openTelemetryChannel replaces any previous telemetry channel. Callbacks of
// a replaced channel no longer touch the peer sink.
func (c *Coordinator) openTelemetryChannel() {
	c.closeTelemetryChannel()

	dc, err := c.tr.OpenDataChannel(telemetry.ChannelLabel)
	if err != nil {
		c.log.Debug("telemetry channel", zap.Error(err))
		return
	}
	c.telemetryDC.Store(dc)

	sink := telemetry.NewChannelSink(dc, c.log.Named("telemetry"))
	dc.OnOpen(func() {
		if c.telemetryDC.Load() == dc {
			c.fanout.Set(peerSink, sink)
		}
	})
	dc.OnClose(func() {
		if c.telemetryDC.Load() == dc {
			c.fanout.Remove(peerSink)
		}
	})
}

func (c *Coordinator) closeTelemetryChannel() {
	c.fanout.Remove(peerSink)
	dc := c.telemetryDC.Swap(nil)
	if dc == nil {
		return
	}
	if err := dc.Close(); err != nil {
		c.log.Debug("close telemetry channel", zap.Error(err))
	}
}

func (c *Coordinator) clearRemote() {
	if c.obs.OnRemoteCleared != nil {
		c.obs.OnRemoteCleared()
	}
}

func (c *Coordinator) phase() Phase {
	switch {
	case c.sharing:
		return Sharing
	case c.channel != nil:
		return Joined
	default:
		return Idle
	}
}

func (c *Coordinator) fail(err *Error) {
	c.log.Warn("operation failed", zap.Error(err))
	c.setStatus(func(s *Status) {
		s.Text = err.Status()
		s.Err = err
	})
}

func (c *Coordinator) publishStatus(text string) {
	c.setStatus(func(s *Status) {
		s.Text = text
		s.Err = nil
	})
}

// setStatus applies edit and refreshes the fields derived from loop state.
func (c *Coordinator) setStatus(edit func(*Status)) {
	c.statusMu.Lock()
	edit(&c.status)
	c.status.Phase = c.phase()
	c.status.Room = c.room
	c.status.Connected = c.channel != nil && c.channel.State() == signaling.StateOpen
	c.status.LiteMode = c.liteMode
	c.status.Peer = c.peerState
	st := c.status
	c.statusMu.Unlock()

	if c.obs.OnStatus != nil {
		c.obs.OnStatus(st)
	}
}
