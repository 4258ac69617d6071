package domain

var themeHashtags = map[string][]string{
	"technology": {"tech", "innovation", "AI", "startup", "digital", "future", "techtrends"},
	"business":   {"business", "entrepreneur", "leadership", "success", "growth", "strategy", "mindset"},
	"motivation": {"motivation", "inspiration", "success", "goals", "mindset", "growth", "positivity"},
	"lifestyle":  {"lifestyle", "wellness", "health", "productivity", "life", "tips", "balance"},
}

// DefaultHashtags returns the stock hashtags for a theme, without '#'.
func DefaultHashtags(theme string) []string {
	if tags, ok := themeHashtags[theme]; ok {
		return append([]string(nil), tags...)
	}
	return []string{"content", "social", "share"}
}
