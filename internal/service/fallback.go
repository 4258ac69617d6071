package service

import (
	"social_autoposter/internal/domain"
)

var fallbackContent = map[string][]string{
	"technology": {
		"The future is being built today. What technology trend excites you most?",
		"Innovation happens when creativity meets technology. What's your next big idea?",
		"Every expert was once a beginner. Keep learning, keep growing in tech!",
	},
	"business": {
		"Success in business is about solving problems people didn't know they had.",
		"Great leaders don't create followers, they create more leaders.",
		"The best investment you can make is in yourself and your skills.",
	},
	"motivation": {
		"Your only limit is your mind. What will you achieve today?",
		"Success is not final, failure is not fatal. It's the courage to continue that counts.",
		"Dream big, start small, but most importantly - start today!",
	},
	"lifestyle": {
		"Small daily improvements lead to stunning long-term results.",
		"Life is about balance. What brings you joy today?",
		"The best time to take care of yourself is now. What's one thing you'll do for yourself today?",
	},
}

// FallbackContent returns static content for a theme. pick selects the entry
// and is reduced modulo the table size, so the result is deterministic for a
// given pick. Unknown themes use the motivation table.
func FallbackContent(theme string, pick int) domain.Content {
	texts := fallbackTexts(theme)
	if pick < 0 {
		pick = -pick
	}

	tags := domain.DefaultHashtags(theme)
	if len(tags) > 5 {
		tags = tags[:5]
	}

	return domain.Content{
		Text:     texts[pick%len(texts)],
		Hashtags: tags,
		Fallback: true,
	}
}

func fallbackTexts(theme string) []string {
	if texts, ok := fallbackContent[theme]; ok {
		return texts
	}
	return fallbackContent["motivation"]
}
