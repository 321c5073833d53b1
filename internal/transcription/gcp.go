package transcription

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"cloud.google.com/go/storage"
)

// GCSUploader stores audio objects in a Google Cloud Storage bucket and
// addresses them with gs:// URIs.
type GCSUploader struct {
	client *storage.Client
	bucket string
}

// NewGCSUploader creates an uploader for the given bucket. Credentials
// come from the ambient environment (GOOGLE_APPLICATION_CREDENTIALS).
func NewGCSUploader(ctx context.Context, bucket string) (*GCSUploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket cannot be empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

// Upload writes data under the given object name and returns its gs:// URI.
func (u *GCSUploader) Upload(ctx context.Context, object string, data []byte) (string, error) {
	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "audio/wav"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", object, err)
	}
	return fmt.Sprintf("gs://%s/%s", u.bucket, object), nil
}

// Close releases the storage client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}

// SpeechRecognizer runs synchronous recognition through the Google Cloud
// Speech-to-Text API against audio already stored in GCS.
type SpeechRecognizer struct {
	client     *speech.Client
	sampleRate int
}

// NewSpeechRecognizer creates a recognizer expecting LINEAR16 audio at the
// given sample rate.
func NewSpeechRecognizer(ctx context.Context, sampleRate int) (*SpeechRecognizer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &SpeechRecognizer{client: client, sampleRate: sampleRate}, nil
}

// Recognize performs a blocking batch recognition call on the object at
// uri and maps the response onto the gateway's result types.
func (r *SpeechRecognizer) Recognize(ctx context.Context, uri, language string) ([]Result, error) {
	resp, err := r.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(r.sampleRate),
			LanguageCode:    language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: uri},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("recognize call failed: %w", err)
	}

	results := make([]Result, 0, len(resp.Results))
	for _, res := range resp.Results {
		alternatives := make([]Alternative, 0, len(res.Alternatives))
		for _, alt := range res.Alternatives {
			alternatives = append(alternatives, Alternative{
				Transcript: alt.Transcript,
				Confidence: alt.Confidence,
			})
		}
		results = append(results, Result{Alternatives: alternatives})
	}
	return results, nil
}

// Close releases the speech client.
func (r *SpeechRecognizer) Close() error {
	return r.client.Close()
}
