package transcription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CrispyBaguette/fb-chat-stt/internal/audio"
)

// Sentinel errors for the two recoverable gateway failure categories, plus
// the empty-result case. All are skip-and-log at the dispatcher.
var (
	// ErrUpload wraps failures to store the audio in the bucket.
	ErrUpload = errors.New("audio upload failed")
	// ErrRecognize wraps failures of the recognition call itself.
	ErrRecognize = errors.New("speech recognition failed")
	// ErrNoSpeech reports a recognition call that succeeded but produced no
	// candidates, e.g. for silence or unintelligible audio.
	ErrNoSpeech = errors.New("no speech recognized")
)

// Alternative is one candidate transcript, ranked by confidence.
type Alternative struct {
	Transcript string
	Confidence float32
}

// Result is one recognition result with its ranked alternatives. The
// backend orders alternatives best-first.
type Result struct {
	Alternatives []Alternative
}

// TranscriptResult is the selected transcript for one voice message.
type TranscriptResult struct {
	Text       string
	Confidence float32
	// ObjectURI is where the audio was stored; retained for traceability.
	ObjectURI string
}

// Uploader stores a named object durably and returns its storage URI.
type Uploader interface {
	Upload(ctx context.Context, object string, data []byte) (string, error)
}

// Recognizer runs synchronous batch recognition on a stored object.
type Recognizer interface {
	Recognize(ctx context.Context, uri, language string) ([]Result, error)
}

// Config contains gateway configuration.
type Config struct {
	// Language is the BCP-47 code the backend transcribes in.
	Language string
	// Timeout bounds each external call (upload, recognize) separately.
	Timeout time.Duration
}

// Stats reports gateway counters for the monitoring endpoints.
type Stats struct {
	Requests  uint64 `json:"requests"`
	Successes uint64 `json:"successes"`
	Failures  uint64 `json:"failures"`
	NoSpeech  uint64 `json:"no_speech"`
}

// Gateway runs the upload-then-recognize leg of the pipeline. Uploaded
// audio is kept in storage indefinitely; there is deliberately no cleanup.
type Gateway struct {
	config     Config
	uploader   Uploader
	recognizer Recognizer

	mu        sync.Mutex
	requests  uint64
	successes uint64
	failures  uint64
	noSpeech  uint64
}

// NewGateway creates a transcription gateway.
func NewGateway(config Config, uploader Uploader, recognizer Recognizer) (*Gateway, error) {
	if config.Language == "" {
		return nil, fmt.Errorf("language cannot be empty")
	}
	if uploader == nil {
		return nil, fmt.Errorf("uploader cannot be nil")
	}
	if recognizer == nil {
		return nil, fmt.Errorf("recognizer cannot be nil")
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &Gateway{
		config:     config,
		uploader:   uploader,
		recognizer: recognizer,
	}, nil
}

// Transcribe uploads the normalized audio under a fresh unique object name
// and returns the first alternative of the first recognition result.
func (g *Gateway) Transcribe(ctx context.Context, a *audio.NormalizedAudio) (TranscriptResult, error) {
	g.count(func() { g.requests++ })

	object := uuid.New().String() + ".wav"

	uploadCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()
	uri, err := g.uploader.Upload(uploadCtx, object, a.WAV)
	if err != nil {
		g.count(func() { g.failures++ })
		return TranscriptResult{}, fmt.Errorf("%w: %w", ErrUpload, err)
	}

	recognizeCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()
	results, err := g.recognizer.Recognize(recognizeCtx, uri, g.config.Language)
	if err != nil {
		g.count(func() { g.failures++ })
		return TranscriptResult{}, fmt.Errorf("%w: %w", ErrRecognize, err)
	}

	if len(results) == 0 || len(results[0].Alternatives) == 0 {
		g.count(func() { g.noSpeech++ })
		return TranscriptResult{}, fmt.Errorf("%w: %w", ErrRecognize, ErrNoSpeech)
	}

	best := results[0].Alternatives[0]
	g.count(func() { g.successes++ })
	return TranscriptResult{
		Text:       best.Transcript,
		Confidence: best.Confidence,
		ObjectURI:  uri,
	}, nil
}

func (g *Gateway) count(f func()) {
	g.mu.Lock()
	f()
	g.mu.Unlock()
}

// GetStats returns a snapshot of the gateway counters.
func (g *Gateway) GetStats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Requests:  g.requests,
		Successes: g.successes,
		Failures:  g.failures,
		NoSpeech:  g.noSpeech,
	}
}
