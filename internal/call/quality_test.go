package call

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestExtractQuality(t *testing.T) {
	tests := []struct {
		name   string
		report webrtc.StatsReport
		want   Quality
		text   string
	}{
		{
			name:   "empty report",
			report: webrtc.StatsReport{},
			want:   Quality{},
			text:   "Latency: -, Loss: -",
		},
		{
			name: "no remote inbound entries",
			report: webrtc.StatsReport{
				"transport": webrtc.TransportStats{ID: "transport"},
			},
			want: Quality{},
			text: "Latency: -, Loss: -",
		},
		{
			name: "rtt without packet counts",
			report: webrtc.StatsReport{
				"ri": webrtc.RemoteInboundRTPStreamStats{RoundTripTime: 0.12},
			},
			want: Quality{Latency: 120 * time.Millisecond, LatencyKnown: true},
			text: "Latency: 120 ms, Loss: -",
		},
		{
			name: "loss aggregated over streams, worst rtt",
			report: webrtc.StatsReport{
				"audio": webrtc.RemoteInboundRTPStreamStats{RoundTripTime: 0.04, PacketsLost: 2, PacketsReceived: 98},
				"video": &webrtc.RemoteInboundRTPStreamStats{RoundTripTime: 0.08, PacketsLost: 8, PacketsReceived: 292},
			},
			want: Quality{Latency: 80 * time.Millisecond, LatencyKnown: true, LossPercent: 3, LossKnown: true},
			text: "Latency: 80 ms, Loss: 3%",
		},
		{
			name: "zero loss is known",
			report: webrtc.StatsReport{
				"ri": webrtc.RemoteInboundRTPStreamStats{PacketsReceived: 500},
			},
			want: Quality{LossKnown: true},
			text: "Latency: -, Loss: 0%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractQuality(tt.report)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, got.String())
		})
	}
}
