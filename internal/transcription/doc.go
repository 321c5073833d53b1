// Package transcription uploads normalized audio to durable object storage
// and runs synchronous speech recognition against it, selecting the best
// transcript from the backend's ranked alternatives.
package transcription
