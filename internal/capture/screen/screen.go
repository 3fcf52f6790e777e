// Package screen produces the shared display as a VP8 track whose bitrate,
// resolution and frame rate can be retuned while it runs.
package screen

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/screen" // registers the screen capture driver
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/BioHazard786/liteshare/internal/capture"
	"github.com/BioHazard786/liteshare/internal/transport"
)

const (
	defaultFrameRate = 15
	defaultBitrate   = 1_200_000
	keyFrameInterval = 60
	rtpMTU           = 1200
)

var (
	ErrNoVideoTrack = errors.New("display capture returned no video track")
	ErrStopped      = errors.New("capture stopped")
)

// Source is the display capture source.
var Source capture.Source = capture.SourceFunc(Open)

// Track is a running display capture.
type Track struct {
	log    *zap.Logger
	track  *mediadevices.VideoTrack
	reader mediadevices.RTPReadCloser
	local  *webrtc.TrackLocalStaticRTP
	knobs  *knobs

	mu      sync.Mutex
	bitrate uint64
	once    sync.Once
	done    chan struct{}
}

// Open asks the platform for the display and starts encoding it.
func Open(opts capture.Options) (transport.LocalTrack, error) {
	if opts.FrameRate <= 0 {
		opts.FrameRate = defaultFrameRate
	}
	if opts.Bitrate == 0 {
		opts.Bitrate = defaultBitrate
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = int(opts.Bitrate)
	vpxParams.KeyFrameInterval = keyFrameInterval
	vpxParams.RateControlEndUsage = vpx.RateControlVBR
	vpxParams.Deadline = 50 * time.Millisecond

	selector := mediadevices.NewCodecSelector(mediadevices.WithVideoEncoders(&vpxParams))

	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameRate = prop.Float(opts.FrameRate)
		},
		Codec: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("display capture: %w", err)
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, ErrNoVideoTrack
	}
	vt, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		tracks[0].Close()
		return nil, ErrNoVideoTrack
	}

	k := &knobs{}
	k.setScale(1)
	k.setFPS(opts.FrameRate)
	vt.Transform(throttle(k, time.Now), downscale(k))

	local, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", "liteshare-screen",
	)
	if err != nil {
		vt.Close()
		return nil, fmt.Errorf("local track: %w", err)
	}

	reader, err := vt.NewRTPReader(local.Codec().MimeType, rand.Uint32(), rtpMTU)
	if err != nil {
		vt.Close()
		return nil, fmt.Errorf("rtp reader: %w", err)
	}

	s := &Track{
		log:     log,
		track:   vt,
		reader:  reader,
		local:   local,
		knobs:   k,
		bitrate: opts.Bitrate,
		done:    make(chan struct{}),
	}
	go s.pump()

	log.Info("screen capture started", zap.Float64("fps", opts.FrameRate), zap.Uint64("bitrate", opts.Bitrate))
	return s, nil
}

// pump copies encoded packets into the local track.
func (s *Track) pump() {
	for {
		pkts, release, err := s.reader.Read()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn("capture read", zap.Error(err))
			}
			return
		}
		for _, p := range pkts {
			if err := s.local.WriteRTP(p); err != nil {
				s.log.Debug("write rtp", zap.Error(err))
			}
		}
		safeRelease(release)
	}
}

func (s *Track) TrackLocal() webrtc.TrackLocal {
	return s.local
}

// SetBitrate retargets the encoder. Encoders without rate control keep
// their configured bitrate.
func (s *Track) SetBitrate(bps uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bps == s.bitrate {
		return nil
	}
	ctrl, ok := s.reader.Controller().(codec.BitRateController)
	if !ok {
		s.log.Debug("encoder has no bitrate control")
		return nil
	}
	if err := ctrl.SetBitRate(int(bps)); err != nil {
		return fmt.Errorf("set bitrate: %w", err)
	}
	s.bitrate = bps
	return nil
}

func (s *Track) SetScale(downscale float64) error {
	if downscale < 1 {
		downscale = 1
	}
	s.knobs.setScale(downscale)
	return nil
}

func (s *Track) SetFrameRate(fps float64) error {
	select {
	case <-s.done:
		return ErrStopped
	default:
	}
	s.knobs.setFPS(fps)
	return nil
}

// SetDegradationPreference decides whether the frame-rate cap may drop
// frames.
func (s *Track) SetDegradationPreference(pref string) {
	s.knobs.keepFrameRate.Store(pref == transport.MaintainFramerate)
}

// Stop ends capture. It is safe to call more than once.
func (s *Track) Stop() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.reader.Close()
		if cerr := s.track.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
