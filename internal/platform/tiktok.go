package platform

import (
	"context"

	"social_autoposter/internal/domain"
)

// TikTok has no text-post API; every capability reports ErrNotImplemented so
// the platform is dropped at authentication instead of faking success.
type TikTok struct{}

func NewTikTok() *TikTok { return &TikTok{} }

func (TikTok) Platform() domain.Platform { return domain.TikTok }

func (TikTok) Authenticate(context.Context) (bool, error) {
	return false, ErrNotImplemented
}

func (TikTok) Publish(context.Context, string, []string, []string) (string, error) {
	return "", ErrNotImplemented
}

func (TikTok) Metrics(context.Context, string) (map[string]int64, error) {
	return nil, ErrNotImplemented
}

func (TikTok) Delete(context.Context, string) error {
	return ErrNotImplemented
}

func (TikTok) TrendingTopics(context.Context) ([]string, error) {
	return nil, ErrNotImplemented
}
