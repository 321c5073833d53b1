// Package bot dispatches incoming chat messages: it filters voice
// attachments from whitelisted threads and runs them through the
// transcode, transcribe, and reply pipeline.
package bot
