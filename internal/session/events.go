package session

import (
	"errors"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/BioHazard786/liteshare/internal/signaling"
	"github.com/BioHazard786/liteshare/internal/telemetry"
	"github.com/BioHazard786/liteshare/internal/transport"
)

func (c *Coordinator) handleEvent(ev any) {
	switch ev := ev.(type) {
	case inboundEvent:
		if ev.ch != c.channel {
			return
		}
		c.handleMessage(ev.msg)
	case closedEvent:
		c.handleClosed(ev)
	case candidateEvent:
		c.send(signaling.ICE(ev.c))
	case trackEvent:
		c.log.Info("remote track",
			zap.String("kind", ev.track.Kind().String()),
			zap.String("codec", ev.track.Codec().MimeType),
		)
		if c.obs.OnRemoteTrack != nil {
			c.obs.OnRemoteTrack(ev.track)
		}
	case dataEvent:
		c.handleDataChannel(ev.dc)
	case stateEvent:
		// Events are posted from separate goroutines and may arrive out of
		// order; only the connection's present state is kept.
		if ev.state != c.tr.ConnectionState() {
			c.log.Debug("stale peer connection state", zap.String("state", ev.state.String()))
			return
		}
		c.peerState = ev.state
		c.log.Debug("peer connection state", zap.String("state", ev.state.String()))
		c.setStatus(func(*Status) {})
	default:
		c.log.Warn("unknown event", zap.Any("event", ev))
	}
}

func (c *Coordinator) handleMessage(msg *signaling.Message) {
	c.log.Debug("inbound message", zap.String("type", msg.Type))

	switch msg.Type {
	case signaling.TypePeerJoined:
		c.publishStatus("Peer joined")
		if c.sharing {
			c.offer()
		}

	case signaling.TypeOffer:
		var p signaling.DescriptionPayload
		if err := msg.DecodePayload(&p); err != nil {
			c.log.Warn("bad offer", zap.Error(err))
			return
		}
		if err := c.tr.SetRemoteDescription(p.SDP); err != nil {
			c.fail(newError("answer", ErrNegotiation, err))
			return
		}
		answer, err := c.tr.CreateAnswer()
		if err != nil {
			c.fail(newError("answer", ErrNegotiation, err))
			return
		}
		c.send(signaling.Answer(answer))

	case signaling.TypeAnswer:
		var p signaling.DescriptionPayload
		if err := msg.DecodePayload(&p); err != nil {
			c.log.Warn("bad answer", zap.Error(err))
			return
		}
		err := c.tr.SetRemoteDescription(p.SDP)
		switch {
		case errors.Is(err, transport.ErrNotAwaiting):
			c.log.Debug("unexpected answer ignored")
		case err != nil:
			c.fail(newError("apply answer", ErrNegotiation, err))
		}

	case signaling.TypeICE:
		if !c.tr.Active() {
			c.log.Debug("candidate before negotiation dropped")
			return
		}
		var ic webrtc.ICECandidateInit
		if err := msg.DecodePayload(&ic); err != nil {
			c.log.Debug("bad candidate", zap.Error(err))
			return
		}
		if err := c.tr.AddRemoteCandidate(ic); err != nil {
			c.log.Debug("candidate dropped", zap.Error(err))
		}

	case signaling.TypePeerLeft:
		c.handlePeerLeft()

	case signaling.TypeError:
		c.handleRelayError(msg)

	default:
		c.log.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

// handlePeerLeft replaces the peer connection so the next peer negotiates
// from scratch. A running share moves to the new connection at its current
// profile.
func (c *Coordinator) handlePeerLeft() {
	c.clearRemote()
	c.fanout.Remove(peerSink)
	c.peerState = webrtc.PeerConnectionStateUnknown

	if !c.sharing {
		if err := c.tr.Close(); err != nil {
			c.log.Debug("close transport", zap.Error(err))
		}
		c.publishStatus("Peer left")
		return
	}

	track := c.sender.Track()
	sender, err := c.tr.Restart()
	if err != nil {
		c.stopTicker()
		c.sender = nil
		c.sharing = false
		if track != nil {
			track.Stop()
		}
		c.fail(newError("peer left", ErrNegotiation, err))
		return
	}
	c.sender = sender
	c.openTelemetryChannel()

	current := c.ctrl.State().Current
	c.ctrl.Reset(current)
	if err := c.ctrl.Apply(sender, current); err != nil {
		c.log.Warn("reapply profile", zap.String("profile", current.Name), zap.Error(err))
	}
	c.publishStatus("Peer left")
}

// handleRelayError surfaces relay errors. A refused join closes the channel
// so Join can be retried.
func (c *Coordinator) handleRelayError(msg *signaling.Message) {
	var p signaling.ErrorPayload
	if err := msg.DecodePayload(&p); err != nil {
		c.log.Warn("bad error message", zap.Error(err))
		return
	}
	c.log.Warn("relay error", zap.String("error", p.Error))

	switch p.Error {
	case signaling.ReasonRoomFull, signaling.ReasonInvalidRoom:
		ch := c.channel
		c.channel = nil
		c.room = ""
		ch.Close()
		c.fail(&Error{Op: "join", Err: ErrNotJoined, Details: p.Error})
	default:
		c.publishStatus("Relay error: " + p.Error)
	}
}

func (c *Coordinator) handleClosed(ev closedEvent) {
	if ev.ch != c.channel {
		return
	}
	c.channel = nil
	c.room = ""

	if ev.err != nil {
		c.log.Warn("signaling channel closed", zap.Error(ev.err))
		err := newError("signaling", ErrConnection, ev.err)
		c.setStatus(func(s *Status) {
			s.Text = textDisconnected
			s.Err = err
		})
		return
	}
	c.publishStatus(textDisconnected)
}

// handleDataChannel listens for the peer's quality snapshots.
func (c *Coordinator) handleDataChannel(dc *webrtc.DataChannel) {
	if dc.Label() != telemetry.ChannelLabel {
		c.log.Debug("ignoring data channel", zap.String("label", dc.Label()))
		return
	}
	onSnapshot := c.obs.OnRemoteTelemetry
	log := c.log
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s, err := telemetry.Decode(msg.Data)
		if err != nil {
			log.Debug("bad telemetry", zap.Error(err))
			return
		}
		if onSnapshot != nil {
			onSnapshot(s)
		}
	})
}
