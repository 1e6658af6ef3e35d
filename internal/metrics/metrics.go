package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for the voice front end.
type Metrics struct {
	ActiveSessions prometheus.Gauge

	TurnsCommitted    prometheus.Counter
	TurnsDiscarded    prometheus.Counter
	ReasoningRequests prometheus.Counter
	ReasoningFailures prometheus.Counter
	ReasoningLatency  prometheus.Histogram

	FillerPlays prometheus.Counter

	PlaybackChunks  prometheus.Counter
	PlaybackErrors  prometheus.Counter
	FirstAudioDelay prometheus.Histogram
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vani_active_sessions",
			Help: "Number of currently active conversation sessions",
		}),
		TurnsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vani_turns_committed_total",
			Help: "Total number of committed conversation turns (user and assistant)",
		}),
		TurnsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vani_turns_discarded_total",
			Help: "Total number of turn-end signals discarded as noise",
		}),
		ReasoningRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vani_reasoning_requests_total",
			Help: "Total number of reasoning service calls",
		}),
		ReasoningFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vani_reasoning_failures_total",
			Help: "Total number of failed or empty reasoning responses",
		}),
		ReasoningLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vani_reasoning_latency_seconds",
			Help:    "Latency of reasoning service calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		FillerPlays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vani_filler_plays_total",
			Help: "Total number of filler clips played to mask latency",
		}),
		PlaybackChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vani_playback_chunks_total",
			Help: "Total number of synthesized audio chunks fed to the output device",
		}),
		PlaybackErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vani_playback_errors_total",
			Help: "Total number of playback or synthesis stream failures",
		}),
		FirstAudioDelay: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vani_first_audio_delay_seconds",
			Help:    "Delay between submission and the first synthesized audio chunk",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}
