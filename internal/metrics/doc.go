// Package metrics defines the Prometheus instrumentation for the
// transcription pipeline.
package metrics
