// Package capture defines how the shared video is opened. The display
// implementation lives in capture/screen, which needs cgo and libvpx.
package capture

import (
	"go.uber.org/zap"

	"github.com/BioHazard786/liteshare/internal/transport"
)

// Options tune the capture before the first profile is applied.
type Options struct {
	FrameRate float64
	Bitrate   uint64
	Logger    *zap.Logger
}

// Source opens a capture track.
type Source interface {
	Open(opts Options) (transport.LocalTrack, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(Options) (transport.LocalTrack, error)

func (f SourceFunc) Open(opts Options) (transport.LocalTrack, error) { return f(opts) }
