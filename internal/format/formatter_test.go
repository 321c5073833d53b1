package format

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/CrispyBaguette/fb-chat-stt/internal/identity"
	"github.com/CrispyBaguette/fb-chat-stt/internal/platform"
)

type staticDirectory struct {
	profile platform.UserProfile
	err     error
}

func (d *staticDirectory) FetchUserInfo(ctx context.Context, userID string) (platform.UserProfile, error) {
	if d.err != nil {
		return platform.UserProfile{}, d.err
	}
	return d.profile, nil
}

func newFormatter(t *testing.T, dir platform.Directory) *Formatter {
	t.Helper()
	f, err := NewFormatter(identity.NewCache(dir), time.UTC)
	if err != nil {
		t.Fatalf("NewFormatter failed: %v", err)
	}
	return f
}

func TestFormat(t *testing.T) {
	f := newFormatter(t, &staticDirectory{
		profile: platform.UserProfile{FirstName: "Marie", LastName: "Curie"},
	})

	// 1700000000000 ms is 2023-11-14 22:13:20 UTC.
	got := f.Format(context.Background(), "42", 1700000000000, "bonjour")
	want := "Marie Curie (22:13:20): bonjour"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestFormatTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	cache := identity.NewCache(&staticDirectory{
		profile: platform.UserProfile{FirstName: "Marie"},
	})
	f, err := NewFormatter(cache, loc)
	if err != nil {
		t.Fatalf("NewFormatter failed: %v", err)
	}

	got := f.Format(context.Background(), "42", 1700000000000, "bonjour")
	want := "Marie (00:13:20): bonjour"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestFormatFallbackOnLookupFailure(t *testing.T) {
	f := newFormatter(t, &staticDirectory{err: errors.New("network error")})

	got := f.Format(context.Background(), "42", 1700000000000, "bonjour")
	want := fmt.Sprintf("%s (22:13:20): bonjour", FallbackAuthor)
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		profile platform.UserProfile
		want    string
	}{
		{
			name:    "nickname wins",
			profile: platform.UserProfile{Nickname: "mc2", FirstName: "Marie", LastName: "Curie"},
			want:    "mc2",
		},
		{
			name:    "first and last name",
			profile: platform.UserProfile{FirstName: "Marie", LastName: "Curie"},
			want:    "Marie Curie",
		},
		{
			name:    "first name only",
			profile: platform.UserProfile{FirstName: "Marie"},
			want:    "Marie",
		},
		{
			name:    "empty profile falls back",
			profile: platform.UserProfile{},
			want:    FallbackAuthor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.profile); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
