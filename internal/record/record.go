// Package record consumes an inbound video track, optionally writing it to
// an IVF file.
package record

import (
	"errors"
	"io"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"go.uber.org/zap"
)

// Source yields RTP packets. *webrtc.TrackRemote satisfies it.
type Source interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Writer stores RTP packets. *ivfwriter.IVFWriter satisfies it.
type Writer interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// Discard consumes packets without storing them.
var Discard Writer = discard{}

type discard struct{}

func (discard) WriteRTP(*rtp.Packet) error { return nil }
func (discard) Close() error               { return nil }

// OpenIVF creates path and returns a VP8 IVF writer for it.
func OpenIVF(path string) (Writer, error) {
	return ivfwriter.New(path)
}

// Drain copies packets from src to w until src ends, then closes w. It
// returns the number of packets written. A clean end of track is not an
// error.
func Drain(src Source, w Writer, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	defer func() {
		if err := w.Close(); err != nil {
			log.Warn("close recording", zap.Error(err))
		}
	}()

	n := 0
	for {
		pkt, _, err := src.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if err := w.WriteRTP(pkt); err != nil {
			return n, err
		}
		n++
	}
}
