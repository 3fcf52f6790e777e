// Package transport wraps the single peer connection of a call.
package transport

import (
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	pnet "github.com/pion/transport/v3"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// Config controls how the peer connection is built.
type Config struct {
	ICEServers []webrtc.ICEServer
	// ForceRelay restricts ICE to TURN relay candidates.
	ForceRelay bool

	LoggerFactory logging.LoggerFactory
	// Net replaces the host network, used for in-process tests.
	Net    pnet.Net
	Logger *zap.Logger
}

// Handlers receive peer connection notifications. They are called from pion
// goroutines and must not call back into the Session.
type Handlers struct {
	OnCandidate   func(webrtc.ICECandidateInit)
	OnTrack       func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
	OnDataChannel func(*webrtc.DataChannel)
	OnStateChange func(webrtc.PeerConnectionState)
}

// Session owns at most one peer connection and one outbound video sender.
// It is not safe for concurrent use.
type Session struct {
	cfg      Config
	handlers Handlers
	log      *zap.Logger

	pc     *webrtc.PeerConnection
	live   atomic.Pointer[webrtc.PeerConnection]
	sender *Sender
}

func New(cfg Config, h Handlers) *Session {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{cfg: cfg, handlers: h, log: log}
}

// Ensure creates the peer connection on first use and returns it.
func (s *Session) Ensure() (*webrtc.PeerConnection, error) {
	if s.pc != nil {
		return s.pc, nil
	}

	api, err := s.newAPI()
	if err != nil {
		return nil, err
	}

	policy := webrtc.ICETransportPolicyAll
	if s.cfg.ForceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:         s.cfg.ICEServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, newError("create peer connection", err)
	}

	s.setupHandlers(pc)
	s.pc = pc
	s.live.Store(pc)
	s.log.Debug("peer connection created", zap.Int("iceServers", len(s.cfg.ICEServers)))
	return pc, nil
}

func (s *Session) newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, newError("register codecs", err)
	}

	// NACK, RTCP reports and TWCC fill in the outbound and remote-inbound
	// stats the quality loop reads.
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, newError("register interceptors", err)
	}

	se := webrtc.SettingEngine{}
	if s.cfg.LoggerFactory != nil {
		se.LoggerFactory = s.cfg.LoggerFactory
	}
	if s.cfg.Net != nil {
		se.SetNet(s.cfg.Net)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	), nil
}

// setupHandlers forwards notifications while pc is still the live
// connection, so a discarded connection cannot leak late events.
func (s *Session) setupHandlers(pc *webrtc.PeerConnection) {
	isLive := func() bool { return s.live.Load() == pc }

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || !isLive() || s.handlers.OnCandidate == nil {
			return
		}
		s.handlers.OnCandidate(c.ToJSON())
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, recv *webrtc.RTPReceiver) {
		s.log.Debug("remote track", zap.String("kind", track.Kind().String()),
			zap.String("codec", track.Codec().MimeType))
		if !isLive() || s.handlers.OnTrack == nil {
			return
		}
		s.handlers.OnTrack(track, recv)
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if !isLive() || s.handlers.OnDataChannel == nil {
			return
		}
		s.handlers.OnDataChannel(dc)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Debug("peer connection state", zap.String("state", state.String()))
		if !isLive() || s.handlers.OnStateChange == nil {
			return
		}
		s.handlers.OnStateChange(state)
	})
}

// AttachLocalTrack binds the outbound video track. Only one sender may be
// attached at a time.
func (s *Session) AttachLocalTrack(track LocalTrack) (*Sender, error) {
	if s.sender != nil {
		return nil, newError("attach track", ErrSenderAttached)
	}

	pc, err := s.Ensure()
	if err != nil {
		return nil, err
	}

	rtp, err := pc.AddTrack(track.TrackLocal())
	if err != nil {
		return nil, newError("add track", err)
	}

	s.sender = newSender(rtp, track)
	return s.sender, nil
}

// DetachLocalTrack stops the track and removes it from the connection. A nil
// or already detached sender is ignored.
func (s *Session) DetachLocalTrack(sender *Sender) error {
	if sender == nil {
		return nil
	}

	if s.pc != nil && s.sender == sender {
		if err := s.pc.RemoveTrack(sender.rtp); err != nil {
			s.log.Debug("remove track", zap.Error(err))
		}
	}
	if s.sender == sender {
		s.sender = nil
	}
	return sender.stop()
}

// Sender returns the attached sender, or nil.
func (s *Session) Sender() *Sender {
	return s.sender
}

// CreateOffer creates an offer and sets it as the local description. An
// earlier offer still waiting for its answer is rolled back and replaced.
func (s *Session) CreateOffer() (webrtc.SessionDescription, error) {
	pc, err := s.Ensure()
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		if err := rollback(pc); err != nil {
			return webrtc.SessionDescription{}, err
		}
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, newError("create offer", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, newError("set local description", err)
	}
	return *pc.LocalDescription(), nil
}

// rollback returns pc to stable. pion parses the description even for a
// rollback, so the pending offer is passed back.
func rollback(pc *webrtc.PeerConnection) error {
	pending := pc.PendingLocalDescription()
	if pending == nil {
		return nil
	}
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback, SDP: pending.SDP}
	if err := pc.SetLocalDescription(desc); err != nil {
		return newError("rollback offer", err)
	}
	return nil
}

// CreateAnswer creates an answer to the applied remote offer and sets it as
// the local description.
func (s *Session) CreateAnswer() (webrtc.SessionDescription, error) {
	pc, err := s.Ensure()
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, newError("create answer", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, newError("set local description", err)
	}
	return *pc.LocalDescription(), nil
}

// SetRemoteDescription applies the peer's offer or answer. An answer with no
// offer outstanding fails with ErrNotAwaiting.
func (s *Session) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if desc.Type == webrtc.SDPTypeAnswer && !s.AwaitingAnswer() {
		return newError("set remote description", ErrNotAwaiting)
	}
	pc, err := s.Ensure()
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(desc); err != nil {
		return newError("set remote description", err)
	}
	return nil
}

// AwaitingAnswer reports whether a local offer is waiting for its answer.
func (s *Session) AwaitingAnswer() bool {
	return s.pc != nil && s.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer
}

// AddRemoteCandidate applies a trickled candidate. Without a peer
// connection it fails with ErrNoPeerConnection; callers drop the candidate
// either way.
func (s *Session) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	if s.pc == nil {
		return newError("add candidate", ErrNoPeerConnection)
	}
	if err := s.pc.AddICECandidate(c); err != nil {
		return newError("add candidate", err)
	}
	return nil
}

// OpenDataChannel opens an ordered data channel on the connection.
func (s *Session) OpenDataChannel(label string) (*webrtc.DataChannel, error) {
	pc, err := s.Ensure()
	if err != nil {
		return nil, err
	}

	ordered := true
	dc, err := pc.CreateDataChannel(label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, newError("create data channel", err)
	}
	return dc, nil
}

// GetStats returns the connection's stats report, or nil without one.
func (s *Session) GetStats() webrtc.StatsReport {
	if s.pc == nil {
		return nil
	}
	return s.pc.GetStats()
}

// ConnectionState returns the live connection's state, or closed without one.
func (s *Session) ConnectionState() webrtc.PeerConnectionState {
	if s.pc == nil {
		return webrtc.PeerConnectionStateClosed
	}
	return s.pc.ConnectionState()
}

// Active reports whether a peer connection exists.
func (s *Session) Active() bool {
	return s.pc != nil
}

// Restart discards the peer connection and attaches the current local track,
// if any, to a fresh one. The returned sender is nil when nothing was
// attached.
func (s *Session) Restart() (*Sender, error) {
	var track LocalTrack
	if s.sender != nil {
		track = s.sender.track
	}
	s.sender = nil
	s.closePeerConnection()

	if track == nil {
		return nil, nil
	}
	return s.AttachLocalTrack(track)
}

// Close stops the attached track and closes the peer connection. It is safe
// to call more than once; a later Ensure starts over.
func (s *Session) Close() error {
	if s.sender != nil {
		if err := s.sender.stop(); err != nil {
			s.log.Debug("stop track", zap.Error(err))
		}
		s.sender = nil
	}
	return s.closePeerConnection()
}

func (s *Session) closePeerConnection() error {
	if s.pc == nil {
		return nil
	}
	pc := s.pc
	s.pc = nil
	s.live.Store(nil)

	if err := pc.Close(); err != nil {
		return newError("close peer connection", err)
	}
	return nil
}
