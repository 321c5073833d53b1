package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels for pipeline failure and duration metrics.
const (
	StageTranscode  = "transcode"
	StageTranscribe = "transcribe"
	StageFormat     = "format"
	StageSend       = "send"
)

// Metrics contains all Prometheus metrics for the bot.
type Metrics struct {
	// Dispatcher metrics
	MessagesReceived   prometheus.Counter
	AttachmentsSeen    prometheus.Counter
	AttachmentsSkipped prometheus.Counter
	RepliesSent        prometheus.Counter

	// Pipeline metrics
	PipelineSuccesses prometheus.Counter
	PipelineFailures  *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the given registerer.
// Pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_messages_received_total",
			Help: "Total number of message events received from the platform",
		}),
		AttachmentsSeen: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_attachments_seen_total",
			Help: "Total number of attachments inspected",
		}),
		AttachmentsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_attachments_skipped_total",
			Help: "Attachments skipped by the whitelist or kind filter",
		}),
		RepliesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_replies_sent_total",
			Help: "Total number of transcription replies sent",
		}),
		PipelineSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_pipeline_successes_total",
			Help: "Voice messages transcribed and replied to",
		}),
		PipelineFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_pipeline_failures_total",
			Help: "Pipeline failures by stage",
		}, []string{"stage"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stt_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"stage"}),
	}
}
