package platform

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"social_autoposter/internal/domain"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"fits", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 8, "hello..."},
		{"runes", "héllo wörld", 7, "héll..."},
		{"tiny max", "hello", 2, "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.max))
		})
	}
}

func TestNormalizeHashtags(t *testing.T) {
	got := NormalizeHashtags([]string{"#AI", "ai", " tech ", "", "#", "Future Tech", "more"}, 3)
	assert.Equal(t, []string{"AI", "tech", "FutureTech"}, got)
}

func TestFormat_AppendsLimitedHashtags(t *testing.T) {
	got := Format(domain.Twitter, "Ship it.", []string{"go", "dev", "cloud", "extra"})
	assert.Equal(t, "Ship it.\n\n#go #dev #cloud", got)
}

func TestFormat_NoHashtags(t *testing.T) {
	assert.Equal(t, "Plain text", Format(domain.Facebook, "  Plain text ", nil))
}

func TestFormat_TruncatesToPlatformLimit(t *testing.T) {
	long := strings.Repeat("a", 400)

	got := Format(domain.Twitter, long, []string{"tag"})
	assert.Equal(t, 280, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))

	got = Format(domain.TikTok, long, nil)
	assert.Equal(t, 150, utf8.RuneCountInString(got))
}

func TestLimits(t *testing.T) {
	assert.Equal(t, 2200, MaxTextLength(domain.Instagram))
	assert.Equal(t, 280, MaxTextLength(domain.Platform("myspace")))
	assert.Equal(t, 10, HashtagCount(domain.Instagram))
	assert.Equal(t, 5, HashtagCount(domain.Platform("myspace")))
	assert.False(t, SupportsImages(domain.TikTok))
	assert.True(t, SupportsImages(domain.LinkedIn))
}

func TestMediaURLs(t *testing.T) {
	got := MediaURLs([]string{"Bright flat-lay photo", "https://cdn.example.com/a.jpg", "ftp://x", "http://b.example.com/b.png"})
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg", "http://b.example.com/b.png"}, got)
}
