package quality

import (
	"github.com/pion/webrtc/v4"
)

const lossEpsilon = 1e-9

// Sample holds the cumulative counters read from one stats report.
type Sample struct {
	TimestampMs float64
	BytesSent   uint64
	PacketsSent uint64

	PacketsLost int64
	HasLoss     bool

	// RTT is in seconds.
	RTT    float64
	HasRTT bool

	// HasOutbound is false when the report carried no outbound video stream.
	HasOutbound bool
}

// Measurement is what one sample says about the link relative to the
// previous one.
type Measurement struct {
	Kbps   float64
	RTT    float64
	HasRTT bool
	Loss   float64
}

// Measure reads the outbound video counters, loss and round-trip time from
// report. Throughput is computed against prev and is zero when there is no
// usable previous sample.
func Measure(report webrtc.StatsReport, prev *Sample) (Sample, Measurement) {
	var (
		s          Sample
		pairRTT    float64
		hasPairRTT bool
		remoteRTT  float64
		hasRemote  bool
	)

	for _, stat := range report {
		switch st := stat.(type) {
		case webrtc.OutboundRTPStreamStats:
			if st.Kind != "video" || s.HasOutbound {
				continue
			}
			s.HasOutbound = true
			s.TimestampMs = float64(st.Timestamp)
			s.BytesSent = st.BytesSent
			s.PacketsSent = uint64(st.PacketsSent)

		case webrtc.RemoteInboundRTPStreamStats:
			if st.Kind != "" && st.Kind != "video" {
				continue
			}
			s.PacketsLost += int64(st.PacketsLost)
			s.HasLoss = true
			if st.RoundTripTime > 0 && !hasRemote {
				remoteRTT, hasRemote = st.RoundTripTime, true
			}

		case webrtc.ICECandidatePairStats:
			if st.Nominated && st.CurrentRoundTripTime > 0 {
				pairRTT, hasPairRTT = st.CurrentRoundTripTime, true
			}
		}
	}

	switch {
	case hasPairRTT:
		s.RTT, s.HasRTT = pairRTT, true
	case hasRemote:
		s.RTT, s.HasRTT = remoteRTT, true
	}

	m := Measurement{RTT: s.RTT, HasRTT: s.HasRTT}
	if s.HasLoss && s.PacketsSent > 0 && s.PacketsLost > 0 {
		m.Loss = float64(s.PacketsLost) / (float64(s.PacketsSent) + lossEpsilon)
	}
	m.Kbps = Throughput(prev, s) / 1000

	return s, m
}

// Throughput returns the send rate in bits per second between prev and cur.
// It is zero when prev is absent, elapsed time is not positive, or the byte
// counter went backwards.
func Throughput(prev *Sample, cur Sample) float64 {
	if prev == nil || !prev.HasOutbound || !cur.HasOutbound {
		return 0
	}
	elapsed := (cur.TimestampMs - prev.TimestampMs) / 1000
	if elapsed <= 0 || cur.BytesSent < prev.BytesSent {
		return 0
	}
	return 8 * float64(cur.BytesSent-prev.BytesSent) / elapsed
}
