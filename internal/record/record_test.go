package record

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

type packetSource struct {
	packets []*rtp.Packet
	end     error
}

func (s *packetSource) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if len(s.packets) == 0 {
		return nil, nil, s.end
	}
	p := s.packets[0]
	s.packets = s.packets[1:]
	return p, nil, nil
}

type memWriter struct {
	got    []*rtp.Packet
	closed int
	fail   error
}

func (w *memWriter) WriteRTP(p *rtp.Packet) error {
	if w.fail != nil {
		return w.fail
	}
	w.got = append(w.got, p)
	return nil
}

func (w *memWriter) Close() error {
	w.closed++
	return nil
}

func packets(n int) []*rtp.Packet {
	out := make([]*rtp.Packet, n)
	for i := range out {
		out[i] = &rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i), Timestamp: uint32(i * 3000)}}
	}
	return out
}

func TestDrainCopiesUntilEOF(t *testing.T) {
	w := &memWriter{}
	n, err := Drain(&packetSource{packets: packets(5), end: io.EOF}, w, nil)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 5 || len(w.got) != 5 {
		t.Errorf("wrote %d (%d stored), want 5", n, len(w.got))
	}
	if w.closed != 1 {
		t.Errorf("closed %d times", w.closed)
	}
}

func TestDrainReportsErrors(t *testing.T) {
	readErr := errors.New("srtp failure")
	w := &memWriter{}
	if _, err := Drain(&packetSource{packets: packets(2), end: readErr}, w, nil); !errors.Is(err, readErr) {
		t.Errorf("read error = %v", err)
	}

	writeErr := errors.New("disk full")
	w = &memWriter{fail: writeErr}
	n, err := Drain(&packetSource{packets: packets(2), end: io.EOF}, w, nil)
	if !errors.Is(err, writeErr) || n != 0 {
		t.Errorf("write error = %v after %d", err, n)
	}
	if w.closed != 1 {
		t.Error("writer not closed after failure")
	}
}

func TestOpenIVFWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.ivf")
	w, err := OpenIVF(path)
	if err != nil {
		t.Fatalf("OpenIVF: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(b) < 32 || string(b[:4]) != "DKIF" {
		t.Errorf("missing IVF header: % x", b[:min(len(b), 8)])
	}
}
