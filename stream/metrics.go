package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the session counters exported to Prometheus.
type Metrics struct {
	FramesSent    prometheus.Counter
	FramesDropped prometheus.Counter
	BytesWritten  prometheus.Counter
	Passes        prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rit128",
			Subsystem: "stream",
			Name:      "frames_sent_total",
			Help:      "Frames transmitted to the panel.",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rit128",
			Subsystem: "stream",
			Name:      "frames_dropped_total",
			Help:      "Truncated frame files discarded.",
		}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rit128",
			Subsystem: "stream",
			Name:      "bytes_written_total",
			Help:      "Bytes written to the link, sentinels included.",
		}),
		Passes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rit128",
			Subsystem: "stream",
			Name:      "passes_total",
			Help:      "Passes over the frame directory.",
		}),
	}
}
