// Package format builds the reply text posted back into the conversation,
// combining the author's display name, the message time, and the
// transcript.
package format
