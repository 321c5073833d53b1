package format

import (
	"context"
	"fmt"
	"time"

	"github.com/CrispyBaguette/fb-chat-stt/internal/identity"
	"github.com/CrispyBaguette/fb-chat-stt/internal/platform"
)

// FallbackAuthor is used when the author's profile cannot be resolved. A
// failed lookup must never block the reply.
const FallbackAuthor = "Unknown sender"

// Formatter renders transcripts into reply messages.
type Formatter struct {
	cache    *identity.Cache
	location *time.Location
}

// NewFormatter creates a formatter. A nil location means local time.
func NewFormatter(cache *identity.Cache, location *time.Location) (*Formatter, error) {
	if cache == nil {
		return nil, fmt.Errorf("identity cache cannot be nil")
	}
	if location == nil {
		location = time.Local
	}
	return &Formatter{cache: cache, location: location}, nil
}

// Format produces "{author} (HH:MM:SS): {text}". timestampMS is
// milliseconds since the Unix epoch, as delivered by the platform.
func (f *Formatter) Format(ctx context.Context, authorID string, timestampMS int64, text string) string {
	when := time.UnixMilli(timestampMS).In(f.location)
	return fmt.Sprintf("%s (%s): %s", f.authorName(ctx, authorID), when.Format("15:04:05"), text)
}

// authorName resolves the display name: nickname when set, otherwise
// first name plus last name when present. Lookup failures degrade to the
// fallback label.
func (f *Formatter) authorName(ctx context.Context, authorID string) string {
	profile, err := f.cache.Lookup(ctx, authorID)
	if err != nil {
		return FallbackAuthor
	}
	return DisplayName(profile)
}

// DisplayName derives a human-readable name from a profile.
func DisplayName(profile platform.UserProfile) string {
	if profile.Nickname != "" {
		return profile.Nickname
	}
	name := profile.FirstName
	if profile.LastName != "" {
		name += " " + profile.LastName
	}
	if name == "" {
		return FallbackAuthor
	}
	return name
}
