package platform

import "context"

// AttachmentKind classifies a message attachment.
type AttachmentKind int

const (
	// AttachmentOther covers images, files, stickers and anything else the
	// bot does not process.
	AttachmentOther AttachmentKind = iota
	// AttachmentVoice is a recorded voice message.
	AttachmentVoice
)

// ThreadKind distinguishes direct conversations from group threads.
type ThreadKind string

const (
	ThreadUser  ThreadKind = "user"
	ThreadGroup ThreadKind = "group"
)

// Attachment is a non-text payload carried by a message event. The URL
// points at the platform's CDN and is valid for a limited time, so it is
// consumed once per message.
type Attachment struct {
	Kind AttachmentKind
	URL  string
}

// Message is a single incoming message event as delivered by the platform.
// Timestamp is milliseconds since the Unix epoch, as the platform reports it.
type Message struct {
	AuthorID    string
	ThreadID    string
	ThreadKind  ThreadKind
	Timestamp   int64
	Text        string
	Attachments []Attachment
}

// UserProfile holds the display identity of a platform user. Nickname is
// empty when the user has not set one.
type UserProfile struct {
	ID        string
	Nickname  string
	FirstName string
	LastName  string
}

// Handler receives incoming message events. It is invoked synchronously
// from the listener; returning does not acknowledge anything to the
// platform.
type Handler func(ctx context.Context, msg Message)

// Client is the full platform connection: it delivers events and accepts
// outbound messages.
type Client interface {
	Listener
	Sender
	Directory
}

// Listener delivers incoming message events until stopped.
type Listener interface {
	// Listen blocks, invoking handler for each incoming message, until Stop
	// is called or the context is cancelled.
	Listen(ctx context.Context, handler Handler) error
	// Stop makes Listen return. Safe to call more than once.
	Stop() error
}

// Sender delivers outbound messages to a thread.
type Sender interface {
	Send(ctx context.Context, text, threadID string, kind ThreadKind) error
}

// Directory resolves user identifiers to profiles.
type Directory interface {
	FetchUserInfo(ctx context.Context, userID string) (UserProfile, error)
}
