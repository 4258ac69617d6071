package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/semaphore"

	"social_autoposter/internal/config"
	"social_autoposter/internal/domain"
	"social_autoposter/internal/platform"
)

var ErrEmptyResponse = errors.New("model returned no content")

// Model is the slice of llms.Model the generator needs.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LLMGenerator writes platform posts with a chat model. The body is required;
// hashtag and media suggestion calls degrade to defaults when they fail.
type LLMGenerator struct {
	model  Model
	cfg    config.GeneratorConfig
	sem    *semaphore.Weighted
	logger *slog.Logger

	pick func(n int) int
}

func New(model Model, cfg config.GeneratorConfig, logger *slog.Logger) *LLMGenerator {
	limit := int64(cfg.Concurrency)
	if limit < 1 {
		limit = 1
	}
	return &LLMGenerator{
		model:  model,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(limit),
		logger: logger.With("component", "generator"),
		pick:   rand.IntN,
	}
}

// NewOpenAI builds a generator backed by an OpenAI-compatible endpoint.
func NewOpenAI(cfg config.GeneratorConfig, logger *slog.Logger) (*LLMGenerator, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return New(llm, cfg, logger), nil
}

func (g *LLMGenerator) Generate(ctx context.Context, p domain.Platform, theme string) (*domain.Content, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	prompt := promptFor(theme)
	topic := prompt.Topics[g.pick(len(prompt.Topics))]
	maxLength := platform.MaxTextLength(p)

	text, err := g.complete(ctx, prompt.System, textPrompt(p, topic, maxLength), g.cfg.Temperature, g.cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generate text: %w", err)
	}
	text = platform.Truncate(cleanText(text), maxLength)
	if text == "" {
		return nil, fmt.Errorf("generate text: %w", ErrEmptyResponse)
	}

	content := &domain.Content{
		Text:     text,
		Topic:    topic,
		Hashtags: g.hashtags(ctx, p, theme, text),
	}
	if platform.SupportsImages(p) {
		content.MediaSuggestions = g.mediaSuggestions(ctx, theme, text)
	}

	g.logger.Debug("content generated",
		"platform", p,
		"theme", theme,
		"topic", topic,
		"length", len(text),
		"hashtags", len(content.Hashtags),
	)

	return content, nil
}

func (g *LLMGenerator) hashtags(ctx context.Context, p domain.Platform, theme, text string) []string {
	count := platform.HashtagCount(p)

	raw, err := g.complete(ctx, "", hashtagPrompt(p, theme, text, count), 0.7, 100)
	if err == nil {
		if tags := platform.NormalizeHashtags(strings.Split(raw, ","), count); len(tags) > 0 {
			return tags
		}
		err = ErrEmptyResponse
	}

	g.logger.Warn("hashtag generation failed, using defaults", "theme", theme, "error", err)
	return platform.NormalizeHashtags(domain.DefaultHashtags(theme), count)
}

func (g *LLMGenerator) mediaSuggestions(ctx context.Context, theme, text string) []string {
	raw, err := g.complete(ctx, "", mediaPrompt(theme, text), 0.7, 150)
	if err != nil {
		g.logger.Warn("media suggestion generation failed", "theme", theme, "error", err)
		return nil
	}

	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (g *LLMGenerator) complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer g.sem.Release(1)

	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(user)},
	})

	resp, err := g.model.GenerateContent(ctx, messages,
		llms.WithModel(g.cfg.Model),
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// cleanText strips the wrapping quotes models like to add.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
