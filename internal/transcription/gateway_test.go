package transcription

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CrispyBaguette/fb-chat-stt/internal/audio"
)

type stubUploader struct {
	uploads []string
	fail    bool
}

func (u *stubUploader) Upload(ctx context.Context, object string, data []byte) (string, error) {
	if u.fail {
		return "", errors.New("bucket unavailable")
	}
	u.uploads = append(u.uploads, object)
	return "gs://audio_messages/" + object, nil
}

type stubRecognizer struct {
	results []Result
	fail    bool
	lastURI string
	lastLng string
}

func (r *stubRecognizer) Recognize(ctx context.Context, uri, language string) ([]Result, error) {
	r.lastURI = uri
	r.lastLng = language
	if r.fail {
		return nil, errors.New("backend unavailable")
	}
	return r.results, nil
}

func testAudio() *audio.NormalizedAudio {
	return &audio.NormalizedAudio{
		WAV:           []byte("RIFFfakewavdata"),
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

func TestTranscribeSelectsFirstAlternative(t *testing.T) {
	uploader := &stubUploader{}
	recognizer := &stubRecognizer{results: []Result{
		{Alternatives: []Alternative{
			{Transcript: "bonjour", Confidence: 0.95},
			{Transcript: "bonjou", Confidence: 0.61},
		}},
		{Alternatives: []Alternative{
			{Transcript: "ignored second result"},
		}},
	}}

	g, err := NewGateway(Config{Language: "fr-FR"}, uploader, recognizer)
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}

	result, err := g.Transcribe(context.Background(), testAudio())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if result.Text != "bonjour" {
		t.Errorf("Expected first alternative of first result, got %q", result.Text)
	}
	if result.Confidence != 0.95 {
		t.Errorf("Expected confidence 0.95, got %f", result.Confidence)
	}
	if recognizer.lastLng != "fr-FR" {
		t.Errorf("Expected language fr-FR, got %s", recognizer.lastLng)
	}
}

func TestTranscribeObjectNaming(t *testing.T) {
	uploader := &stubUploader{}
	recognizer := &stubRecognizer{results: []Result{
		{Alternatives: []Alternative{{Transcript: "ok"}}},
	}}
	g, _ := NewGateway(Config{Language: "fr-FR"}, uploader, recognizer)

	result1, err := g.Transcribe(context.Background(), testAudio())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	result2, err := g.Transcribe(context.Background(), testAudio())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if len(uploader.uploads) != 2 {
		t.Fatalf("Expected 2 uploads, got %d", len(uploader.uploads))
	}
	for _, object := range uploader.uploads {
		if !strings.HasSuffix(object, ".wav") {
			t.Errorf("Object name %q must end in .wav", object)
		}
	}
	if uploader.uploads[0] == uploader.uploads[1] {
		t.Error("Object names must be unique across uploads")
	}

	if result1.ObjectURI == result2.ObjectURI {
		t.Error("Object URIs must be unique")
	}
	if !strings.HasPrefix(result1.ObjectURI, "gs://audio_messages/") {
		t.Errorf("Unexpected object URI %s", result1.ObjectURI)
	}
	if recognizer.lastURI != result2.ObjectURI {
		t.Errorf("Recognizer must be pointed at the uploaded object, got %s", recognizer.lastURI)
	}
}

func TestTranscribeUploadFailure(t *testing.T) {
	g, _ := NewGateway(Config{Language: "fr-FR"}, &stubUploader{fail: true}, &stubRecognizer{})

	_, err := g.Transcribe(context.Background(), testAudio())
	if !errors.Is(err, ErrUpload) {
		t.Fatalf("Expected ErrUpload, got %v", err)
	}
	if stats := g.GetStats(); stats.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", stats.Failures)
	}
}

func TestTranscribeRecognitionFailure(t *testing.T) {
	g, _ := NewGateway(Config{Language: "fr-FR"}, &stubUploader{}, &stubRecognizer{fail: true})

	_, err := g.Transcribe(context.Background(), testAudio())
	if !errors.Is(err, ErrRecognize) {
		t.Fatalf("Expected ErrRecognize, got %v", err)
	}
}

func TestTranscribeEmptyResults(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
	}{
		{name: "no results", results: nil},
		{name: "result without alternatives", results: []Result{{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := NewGateway(Config{Language: "fr-FR"}, &stubUploader{}, &stubRecognizer{results: tt.results})

			_, err := g.Transcribe(context.Background(), testAudio())
			if !errors.Is(err, ErrNoSpeech) {
				t.Fatalf("Expected ErrNoSpeech, got %v", err)
			}
			if !errors.Is(err, ErrRecognize) {
				t.Fatalf("ErrNoSpeech must be reported as a recognition error, got %v", err)
			}
		})
	}
}

func TestNewGatewayValidation(t *testing.T) {
	tests := []struct {
		name       string
		config     Config
		uploader   Uploader
		recognizer Recognizer
	}{
		{name: "missing language", config: Config{}, uploader: &stubUploader{}, recognizer: &stubRecognizer{}},
		{name: "nil uploader", config: Config{Language: "fr-FR"}, recognizer: &stubRecognizer{}},
		{name: "nil recognizer", config: Config{Language: "fr-FR"}, uploader: &stubUploader{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGateway(tt.config, tt.uploader, tt.recognizer); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestGatewayStats(t *testing.T) {
	recognizer := &stubRecognizer{results: []Result{
		{Alternatives: []Alternative{{Transcript: "ok"}}},
	}}
	g, _ := NewGateway(Config{Language: "fr-FR"}, &stubUploader{}, recognizer)

	for i := 0; i < 3; i++ {
		if _, err := g.Transcribe(context.Background(), testAudio()); err != nil {
			t.Fatalf("Transcribe %d failed: %v", i, err)
		}
	}

	stats := g.GetStats()
	if stats.Requests != 3 || stats.Successes != 3 {
		t.Errorf("Expected 3 requests and successes, got %+v", stats)
	}
}
