package call

import (
	"fmt"
	"math"
	"time"

	"github.com/pion/webrtc/v4"
)

// Quality is one call-quality sample. A metric the transport did not
// report is unknown, never zero.
type Quality struct {
	Latency      time.Duration
	LatencyKnown bool
	LossPercent  int
	LossKnown    bool
}

// String renders the sample the way the call screen shows it
func (q Quality) String() string {
	latency, loss := "-", "-"
	if q.LatencyKnown {
		latency = fmt.Sprintf("%d ms", q.Latency.Milliseconds())
	}
	if q.LossKnown {
		loss = fmt.Sprintf("%d%%", q.LossPercent)
	}
	return fmt.Sprintf("Latency: %s, Loss: %s", latency, loss)
}

// ExtractQuality reads round-trip time and packet loss from the
// remote-inbound RTP entries of report. Loss is aggregated over all
// streams; latency is the worst stream's round-trip time.
func ExtractQuality(report webrtc.StatsReport) Quality {
	var (
		q              Quality
		lost, received float64
	)

	for _, s := range report {
		var stats webrtc.RemoteInboundRTPStreamStats
		switch v := s.(type) {
		case webrtc.RemoteInboundRTPStreamStats:
			stats = v
		case *webrtc.RemoteInboundRTPStreamStats:
			if v == nil {
				continue
			}
			stats = *v
		default:
			continue
		}

		if stats.RoundTripTime > 0 {
			rtt := time.Duration(math.Round(stats.RoundTripTime*1000)) * time.Millisecond
			if !q.LatencyKnown || rtt > q.Latency {
				q.Latency = rtt
			}
			q.LatencyKnown = true
		}

		if float64(stats.PacketsLost)+float64(stats.PacketsReceived) > 0 {
			lost += float64(stats.PacketsLost)
			received += float64(stats.PacketsReceived)
		}
	}

	if total := lost + received; total > 0 {
		q.LossPercent = int(math.Round(lost / total * 100))
		q.LossKnown = true
	}
	return q
}
