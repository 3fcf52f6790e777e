package transport

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Degradation preferences understood by LocalTrack implementations.
const (
	MaintainResolution = "maintain-resolution"
	MaintainFramerate  = "maintain-framerate"
	Balanced           = "balanced"
)

// LocalTrack is an outbound video track whose encoder can be retuned while
// it runs.
type LocalTrack interface {
	TrackLocal() webrtc.TrackLocal
	SetBitrate(bps uint64) error
	SetScale(downscale float64) error
	SetFrameRate(fps float64) error
	SetDegradationPreference(pref string)
	Stop() error
}

// SendParameters are the tunable encoding parameters of the single video
// encoding.
type SendParameters struct {
	MaxBitrate            uint64
	ScaleResolutionDownBy float64
	DegradationPreference string
}

// Sender is the handle for the attached outbound video track.
type Sender struct {
	rtp   *webrtc.RTPSender
	track LocalTrack

	mu     sync.Mutex
	params SendParameters
	once   sync.Once
}

func newSender(rtp *webrtc.RTPSender, track LocalTrack) *Sender {
	s := &Sender{
		rtp:   rtp,
		track: track,
		params: SendParameters{
			ScaleResolutionDownBy: 1,
			DegradationPreference: Balanced,
		},
	}
	go s.drainRTCP()
	return s
}

// drainRTCP reads incoming RTCP so interceptors such as NACK can process it.
func (s *Sender) drainRTCP() {
	buf := make([]byte, 1500)
	for {
		if _, _, err := s.rtp.Read(buf); err != nil {
			return
		}
	}
}

// Track returns the local track bound to this sender.
func (s *Sender) Track() LocalTrack {
	return s.track
}

func (s *Sender) GetParameters() SendParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParameters records p and pushes it into the encoder.
func (s *Sender) SetParameters(p SendParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.MaxBitrate > 0 {
		if err := s.track.SetBitrate(p.MaxBitrate); err != nil {
			return newError("set bitrate", err)
		}
	}
	if p.ScaleResolutionDownBy >= 1 {
		if err := s.track.SetScale(p.ScaleResolutionDownBy); err != nil {
			return newError("set scale", err)
		}
	}
	if p.DegradationPreference != "" {
		s.track.SetDegradationPreference(p.DegradationPreference)
	}
	s.params = p
	return nil
}

// SetFrameRate asks the capture track for a new frame rate.
func (s *Sender) SetFrameRate(fps float64) error {
	return s.track.SetFrameRate(fps)
}

func (s *Sender) stop() error {
	var err error
	s.once.Do(func() {
		err = s.track.Stop()
	})
	return err
}
