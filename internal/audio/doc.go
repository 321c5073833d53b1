// Package audio retrieves voice-message attachments and normalizes them
// for the transcription backend. It decodes the common compressed
// containers (OGG/Opus, OGG/Vorbis, MP3, WAV), downmixes to mono,
// resamples to the target rate, and encodes the result as 16-bit PCM WAV.
package audio
