package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CrispyBaguette/fb-chat-stt/internal/audio"
	"github.com/CrispyBaguette/fb-chat-stt/internal/format"
	"github.com/CrispyBaguette/fb-chat-stt/internal/metrics"
	"github.com/CrispyBaguette/fb-chat-stt/internal/platform"
	"github.com/CrispyBaguette/fb-chat-stt/internal/transcription"
)

// Transcoder converts a remote voice attachment into normalized audio.
type Transcoder interface {
	Transcode(ctx context.Context, url string) (*audio.NormalizedAudio, error)
}

// Transcriber turns normalized audio into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, aud *audio.NormalizedAudio) (transcription.TranscriptResult, error)
}

// Stats contains dispatcher statistics.
type Stats struct {
	MessagesReceived   uint64 `json:"messages_received"`
	AttachmentsSeen    uint64 `json:"attachments_seen"`
	AttachmentsSkipped uint64 `json:"attachments_skipped"`
	Transcribed        uint64 `json:"transcribed"`
	Failed             uint64 `json:"failed"`
}

// Dispatcher routes incoming messages through the transcription pipeline.
type Dispatcher struct {
	whitelist   map[string]struct{}
	transcoder  Transcoder
	transcriber Transcriber
	formatter   *format.Formatter
	sender      platform.Sender
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu    sync.Mutex
	stats Stats
}

// NewDispatcher creates a dispatcher. The whitelist holds the thread IDs
// the bot is allowed to act in; an empty whitelist means the bot ignores
// everything.
func NewDispatcher(whitelist []string, transcoder Transcoder, transcriber Transcriber,
	formatter *format.Formatter, sender platform.Sender,
	logger *slog.Logger, m *metrics.Metrics) (*Dispatcher, error) {

	if transcoder == nil {
		return nil, fmt.Errorf("transcoder cannot be nil")
	}
	if transcriber == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}
	if formatter == nil {
		return nil, fmt.Errorf("formatter cannot be nil")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}

	allowed := make(map[string]struct{}, len(whitelist))
	for _, id := range whitelist {
		allowed[id] = struct{}{}
	}

	return &Dispatcher{
		whitelist:   allowed,
		transcoder:  transcoder,
		transcriber: transcriber,
		formatter:   formatter,
		sender:      sender,
		logger:      logger,
		metrics:     m,
	}, nil
}

// HandleMessage processes a single incoming message. It never returns an
// error: pipeline failures are logged and counted so the listener keeps
// running. Attachments are processed independently, one reply each.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg platform.Message) {
	d.metrics.MessagesReceived.Inc()
	d.mu.Lock()
	d.stats.MessagesReceived++
	d.mu.Unlock()

	for _, att := range msg.Attachments {
		d.metrics.AttachmentsSeen.Inc()
		d.mu.Lock()
		d.stats.AttachmentsSeen++
		d.mu.Unlock()

		if !d.shouldProcess(msg, att) {
			d.metrics.AttachmentsSkipped.Inc()
			d.mu.Lock()
			d.stats.AttachmentsSkipped++
			d.mu.Unlock()
			continue
		}

		if err := d.process(ctx, msg, att); err != nil {
			d.metrics.PipelineFailures.WithLabelValues(stageOf(err)).Inc()
			d.mu.Lock()
			d.stats.Failed++
			d.mu.Unlock()
			d.logger.Error("Voice message pipeline failed",
				slog.String("thread_id", msg.ThreadID),
				slog.String("author_id", msg.AuthorID),
				slog.String("stage", stageOf(err)),
				slog.String("error", err.Error()))
			continue
		}

		d.metrics.PipelineSuccesses.Inc()
		d.metrics.RepliesSent.Inc()
		d.mu.Lock()
		d.stats.Transcribed++
		d.mu.Unlock()
	}
}

// shouldProcess applies the thread whitelist and attachment kind filter.
func (d *Dispatcher) shouldProcess(msg platform.Message, att platform.Attachment) bool {
	if att.Kind != platform.AttachmentVoice {
		return false
	}
	_, ok := d.whitelist[msg.ThreadID]
	return ok
}

// process runs one attachment through the full pipeline.
func (d *Dispatcher) process(ctx context.Context, msg platform.Message, att platform.Attachment) error {
	d.logger.Info("Processing voice message",
		slog.String("thread_id", msg.ThreadID),
		slog.String("author_id", msg.AuthorID))

	start := time.Now()
	normalized, err := d.transcoder.Transcode(ctx, att.URL)
	d.metrics.StageDuration.WithLabelValues(metrics.StageTranscode).Observe(time.Since(start).Seconds())
	if err != nil {
		return &stageError{stage: metrics.StageTranscode, err: err}
	}

	start = time.Now()
	result, err := d.transcriber.Transcribe(ctx, normalized)
	d.metrics.StageDuration.WithLabelValues(metrics.StageTranscribe).Observe(time.Since(start).Seconds())
	if err != nil {
		return &stageError{stage: metrics.StageTranscribe, err: err}
	}

	reply := d.formatter.Format(ctx, msg.AuthorID, msg.Timestamp, result.Text)

	start = time.Now()
	err = d.sender.Send(ctx, reply, msg.ThreadID, msg.ThreadKind)
	d.metrics.StageDuration.WithLabelValues(metrics.StageSend).Observe(time.Since(start).Seconds())
	if err != nil {
		return &stageError{stage: metrics.StageSend, err: err}
	}

	d.logger.Info("Transcription replied",
		slog.String("thread_id", msg.ThreadID),
		slog.Float64("confidence", float64(result.Confidence)),
		slog.Duration("audio_duration", normalized.Duration))
	return nil
}

// GetStats returns a snapshot of dispatcher statistics.
func (d *Dispatcher) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// stageError tags a pipeline failure with the stage it occurred in.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("%s: %v", e.stage, e.err)
}

func (e *stageError) Unwrap() error {
	return e.err
}

func stageOf(err error) string {
	if se, ok := err.(*stageError); ok {
		return se.stage
	}
	return "unknown"
}
