package platform

import (
	"strings"
	"unicode/utf8"

	"social_autoposter/internal/domain"
)

const defaultMaxText = 280

var maxTextLength = map[domain.Platform]int{
	domain.Twitter:   280,
	domain.Instagram: 2200,
	domain.Facebook:  63206,
	domain.LinkedIn:  3000,
	domain.TikTok:    150,
}

var hashtagCount = map[domain.Platform]int{
	domain.Twitter:   3,
	domain.Instagram: 10,
	domain.Facebook:  5,
	domain.LinkedIn:  5,
	domain.TikTok:    8,
}

// MaxTextLength is the character limit of a post body on the platform.
func MaxTextLength(p domain.Platform) int {
	if n, ok := maxTextLength[p]; ok {
		return n
	}
	return defaultMaxText
}

// HashtagCount is how many hashtags a post on the platform should carry.
func HashtagCount(p domain.Platform) int {
	if n, ok := hashtagCount[p]; ok {
		return n
	}
	return 5
}

// SupportsImages reports whether the platform accepts image posts.
func SupportsImages(p domain.Platform) bool {
	return p != domain.TikTok
}

// Truncate cuts s to at most max characters, ending in "..." when cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}

// NormalizeHashtags strips leading '#' and whitespace, drops empties and
// duplicates (case-insensitive) and keeps at most limit tags.
func NormalizeHashtags(tags []string, limit int) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tag), "#"))
		tag = strings.ReplaceAll(tag, " ", "")
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Format renders the text and hashtags the way the platform receives them:
// body, blank line, space-separated #tags, truncated to the platform limit.
func Format(p domain.Platform, text string, hashtags []string) string {
	formatted := strings.TrimSpace(text)

	tags := NormalizeHashtags(hashtags, HashtagCount(p))
	if len(tags) > 0 {
		formatted += "\n\n#" + strings.Join(tags, " #")
	}

	return Truncate(formatted, MaxTextLength(p))
}

// MediaURLs keeps only entries that are fetchable URLs.
func MediaURLs(media []string) []string {
	var urls []string
	for _, m := range media {
		if strings.HasPrefix(m, "https://") || strings.HasPrefix(m, "http://") {
			urls = append(urls, m)
		}
	}
	return urls
}
