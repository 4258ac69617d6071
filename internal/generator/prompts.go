package generator

import (
	"fmt"

	"social_autoposter/internal/domain"
)

type themePrompt struct {
	System string
	Topics []string
}

var themePrompts = map[string]themePrompt{
	"technology": {
		System: "You are a technology expert and social media content creator. Create engaging, informative posts about the latest in tech, AI, startups, and innovation.",
		Topics: []string{
			"Latest AI developments and breakthroughs",
			"Startup success stories and lessons",
			"Tech productivity tips and tools",
			"Future of technology predictions",
			"Programming and development insights",
			"Cybersecurity awareness",
			"Digital transformation trends",
		},
	},
	"business": {
		System: "You are a business strategist and thought leader. Create valuable content about entrepreneurship, leadership, business growth, and industry insights.",
		Topics: []string{
			"Leadership lessons and strategies",
			"Business growth tactics",
			"Market trends and analysis",
			"Entrepreneurship stories",
			"Team building and management",
			"Financial planning and investment",
			"Customer experience insights",
		},
	},
	"motivation": {
		System: "You are an inspirational speaker and life coach. Create uplifting, motivational content that inspires action and positive thinking.",
		Topics: []string{
			"Daily motivation and inspiration",
			"Success mindset tips",
			"Overcoming challenges and obstacles",
			"Goal setting and achievement",
			"Personal development insights",
			"Work-life balance strategies",
			"Building confidence and self-esteem",
		},
	},
	"lifestyle": {
		System: "You are a lifestyle influencer and wellness expert. Create content about health, productivity, personal growth, and living well.",
		Topics: []string{
			"Health and wellness tips",
			"Productivity hacks and systems",
			"Travel experiences and tips",
			"Food and nutrition insights",
			"Home and lifestyle improvements",
			"Mindfulness and mental health",
			"Sustainable living practices",
		},
	},
}

var platformInstructions = map[domain.Platform]string{
	domain.Twitter:   "Create a concise, engaging tweet that sparks conversation and encourages retweets.",
	domain.Instagram: "Create an Instagram caption that tells a story and connects with the audience emotionally.",
	domain.Facebook:  "Create a Facebook post that encourages discussion and community engagement.",
	domain.LinkedIn:  "Create a professional LinkedIn post that provides value to your network.",
	domain.TikTok:    "Create a short, catchy caption for a TikTok video that would go viral.",
}

// promptFor falls back to the technology prompts for unknown themes.
func promptFor(theme string) themePrompt {
	if p, ok := themePrompts[theme]; ok {
		return p
	}
	return themePrompts["technology"]
}

func instructionFor(p domain.Platform) string {
	if s, ok := platformInstructions[p]; ok {
		return s
	}
	return platformInstructions[domain.Twitter]
}

func textPrompt(platform domain.Platform, topic string, maxLength int) string {
	return fmt.Sprintf(`Topic: %s
Platform: %s

Instructions:
- %s
- Maximum length: %d characters
- Be authentic, engaging, and valuable
- Use a conversational tone
- Include a call-to-action when appropriate
- DO NOT include hashtags in the main text (they will be added separately)

Generate the content now:`, topic, platform, instructionFor(platform), maxLength)
}

func hashtagPrompt(platform domain.Platform, theme, content string, count int) string {
	return fmt.Sprintf(`Generate %d relevant hashtags for this %s post about %s:

Content: %s

Requirements:
- Hashtags should be relevant and popular
- Mix of broad and specific hashtags
- Include trending hashtags when relevant
- Format: Return only hashtags separated by commas, without the # symbol

Hashtags:`, count, platform, theme, content)
}

func mediaPrompt(theme, content string) string {
	return fmt.Sprintf(`Suggest 3 types of visual content that would complement this post about %s:

Content: %s

Provide suggestions for:
1. Image type/style
2. Video concept (if applicable)
3. Graphic/infographic idea

Keep suggestions brief and actionable.`, theme, content)
}
