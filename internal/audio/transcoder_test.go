package audio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSniffContainer(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want container
	}{
		{
			name: "ogg opus",
			data: append([]byte("OggS\x00\x02\x00\x00\x00\x00\x00\x00\x00\x00"), []byte("\x00\x00\x00\x00\x00\x00\x00\x00\x01\x13OpusHead")...),
			want: containerOggOpus,
		},
		{
			name: "ogg vorbis",
			data: append([]byte("OggS\x00\x02\x00\x00\x00\x00\x00\x00\x00\x00"), []byte("\x00\x00\x00\x00\x00\x00\x00\x00\x01\x1e\x01vorbis")...),
			want: containerOggVorbis,
		},
		{
			name: "wav",
			data: []byte("RIFF\x24\x00\x00\x00WAVEfmt "),
			want: containerWAV,
		},
		{
			name: "mp4",
			data: []byte("\x00\x00\x00\x20ftypisom\x00\x00\x02\x00"),
			want: containerMP4,
		},
		{
			name: "mp3 with id3 tag",
			data: []byte("ID3\x04\x00\x00\x00\x00\x00\x00\xff\xfb"),
			want: containerMP3,
		},
		{
			name: "mp3 bare frame sync",
			data: []byte("\xff\xfb\x90\x00\x00\x00\x00\x00\x00\x00\x00\x00"),
			want: containerMP3,
		},
		{
			name: "garbage",
			data: []byte("definitely not audio"),
			want: containerUnknown,
		},
		{
			name: "truncated",
			data: []byte("Og"),
			want: containerUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniffContainer(tt.data); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNormalizeProducesTargetFormat(t *testing.T) {
	// Feed a WAV at a non-target rate; the output must always be mono,
	// 16-bit, at the configured rate regardless of the input format.
	tests := []struct {
		name    string
		srcRate int
	}{
		{name: "upsample from 8k", srcRate: 8000},
		{name: "downsample from 44.1k", srcRate: 44100},
		{name: "already at target", srcRate: 16000},
	}

	tc, err := NewTranscoder(TranscoderConfig{TargetSampleRate: 16000})
	if err != nil {
		t.Fatalf("NewTranscoder failed: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := EncodeWAV(sineWave(tt.srcRate, 0.25), tt.srcRate)
			if err != nil {
				t.Fatalf("EncodeWAV failed: %v", err)
			}

			normalized, err := tc.Normalize(payload)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}

			if normalized.SampleRate != 16000 {
				t.Errorf("Expected 16000 Hz, got %d", normalized.SampleRate)
			}
			if normalized.Channels != 1 {
				t.Errorf("Expected 1 channel, got %d", normalized.Channels)
			}
			if normalized.BitsPerSample != 16 {
				t.Errorf("Expected 16-bit samples, got %d", normalized.BitsPerSample)
			}

			info, err := GetWAVInfo(normalized.WAV)
			if err != nil {
				t.Fatalf("Output is not a valid WAV stream: %v", err)
			}
			if info.SampleRate != 16000 || info.Channels != 1 || info.BitsPerSample != 16 {
				t.Errorf("WAV header disagrees with normalized format: %+v", info)
			}
		})
	}
}

func TestNormalizeRejectsMP4(t *testing.T) {
	tc, _ := NewTranscoder(TranscoderConfig{})
	_, err := tc.Normalize([]byte("\x00\x00\x00\x20ftypisom\x00\x00\x02\x00"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Expected ErrDecode for mp4 input, got %v", err)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	tc, _ := NewTranscoder(TranscoderConfig{})
	_, err := tc.Normalize([]byte("this is not an audio container at all"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Expected ErrDecode, got %v", err)
	}
}

func TestTranscodeFetchesAndNormalizes(t *testing.T) {
	payload, err := EncodeWAV(sineWave(8000, 0.1), 8000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	tc, _ := NewTranscoder(TranscoderConfig{TargetSampleRate: 16000})
	normalized, err := tc.Transcode(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if normalized.SampleRate != 16000 {
		t.Errorf("Expected 16000 Hz, got %d", normalized.SampleRate)
	}
}

func TestTranscodeFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	tc, _ := NewTranscoder(TranscoderConfig{})
	_, err := tc.Transcode(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("Expected ErrFetch for 404, got %v", err)
	}
}

func TestTranscodeOversizeAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	tc, err := NewTranscoder(TranscoderConfig{MaxBytes: 1024})
	if err != nil {
		t.Fatalf("NewTranscoder failed: %v", err)
	}
	if _, err := tc.Transcode(context.Background(), srv.URL); !errors.Is(err, ErrFetch) {
		t.Fatalf("Expected ErrFetch for oversize payload, got %v", err)
	}
}

func TestOpusPacketSamples(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
		want   int
	}{
		{name: "silk wb 20ms single frame", packet: []byte{0x48, 0x0B}, want: 960},
		{name: "silk nb 10ms single frame", packet: []byte{0x00, 0x0B}, want: 480},
		{name: "silk wb 60ms single frame", packet: []byte{0x58, 0x0B}, want: 2880},
		{name: "celt fb 2.5ms single frame", packet: []byte{0xE0, 0x0B}, want: 120},
		{name: "two frames doubles", packet: []byte{0x49, 0x0B}, want: 1920},
		{name: "code 3 with three frames", packet: []byte{0x4B, 0x03}, want: 2880},
		{name: "code 3 exceeding 120ms ceiling", packet: []byte{0x5B, 0x30}, want: 0},
		{name: "code 3 truncated", packet: []byte{0x4B}, want: 0},
		{name: "empty packet", packet: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := opusPacketSamples(tt.packet); got != tt.want {
				t.Errorf("Expected %d samples, got %d", tt.want, got)
			}
		})
	}
}

func TestOggPacketReassembly(t *testing.T) {
	// One page, two packets: the first spans two lacing values (255 + 10),
	// the second fits in one (5).
	page := []byte("OggS")
	page = append(page, make([]byte, 22)...) // version..crc
	page = append(page, 3)                   // segment count
	page = append(page, 255, 10, 5)          // lacing values
	page = append(page, make([]byte, 255+10+5)...)

	packets, err := oggPackets(page)
	if err != nil {
		t.Fatalf("oggPackets failed: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("Expected 2 packets, got %d", len(packets))
	}
	if len(packets[0]) != 265 {
		t.Errorf("Expected first packet of 265 bytes, got %d", len(packets[0]))
	}
	if len(packets[1]) != 5 {
		t.Errorf("Expected second packet of 5 bytes, got %d", len(packets[1]))
	}
}
