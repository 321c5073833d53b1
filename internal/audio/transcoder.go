package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors distinguishing the two recoverable transcoding failure
// categories. Both are skip-and-log at the dispatcher, never fatal.
var (
	// ErrFetch wraps failures to retrieve the attachment payload.
	ErrFetch = errors.New("attachment fetch failed")
	// ErrDecode wraps payloads that are not a decodable audio container.
	ErrDecode = errors.New("audio decode failed")
)

// TranscoderConfig contains transcoder tuning parameters.
type TranscoderConfig struct {
	// TargetSampleRate is the rate expected by the speech backend.
	TargetSampleRate int
	// Timeout bounds the attachment download.
	Timeout time.Duration
	// MaxBytes caps how large an attachment is buffered in memory.
	MaxBytes int64
}

// Transcoder downloads voice-message attachments and converts them to the
// normalized mono 16-bit PCM wave format.
type Transcoder struct {
	config     TranscoderConfig
	httpClient *http.Client
}

// NewTranscoder creates a transcoder. Zero config fields get defaults:
// 16000 Hz, 30 s timeout, 25 MiB size cap.
func NewTranscoder(config TranscoderConfig) (*Transcoder, error) {
	if config.TargetSampleRate == 0 {
		config.TargetSampleRate = 16000
	}
	if config.TargetSampleRate <= 0 {
		return nil, fmt.Errorf("target sample rate must be positive, got %d", config.TargetSampleRate)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 25 << 20
	}

	return &Transcoder{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Transcode retrieves the attachment at url and produces normalized audio.
// The whole payload is buffered before decoding; attachment CDN links do
// not support range reads reliably enough for streaming decode.
func (t *Transcoder) Transcode(ctx context.Context, url string) (*NormalizedAudio, error) {
	payload, err := t.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return t.Normalize(payload)
}

// Normalize converts an already-buffered compressed payload into the
// canonical wave format.
func (t *Transcoder) Normalize(payload []byte) (*NormalizedAudio, error) {
	c := sniffContainer(payload)
	samples, srcRate, channels, err := decode(payload, c)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrDecode, c, err)
	}

	samples = downmixMono(samples, channels)
	samples = resampleLinear(samples, srcRate, t.config.TargetSampleRate)
	pcm := toPCM16(samples)

	wavData, err := EncodeWAV(pcm, t.config.TargetSampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return &NormalizedAudio{
		WAV:           wavData,
		SampleRate:    t.config.TargetSampleRate,
		Channels:      1,
		BitsPerSample: 16,
		Duration: time.Duration(len(pcm)) * time.Second /
			time.Duration(t.config.TargetSampleRate),
	}, nil
}

func (t *Transcoder) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, t.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	if int64(len(payload)) > t.config.MaxBytes {
		return nil, fmt.Errorf("attachment exceeds %d byte limit", t.config.MaxBytes)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("attachment payload is empty")
	}
	return payload, nil
}
