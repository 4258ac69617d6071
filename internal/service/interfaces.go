package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"social_autoposter/internal/domain"
)

type PostStore interface {
	Create(ctx context.Context, post *domain.PostRecord) error
	// NextDue returns the oldest scheduled record for the platform due at or
	// before now, or nil when there is none.
	NextDue(ctx context.Context, platform domain.Platform, now time.Time) (*domain.PostRecord, error)
	MarkPosted(ctx context.Context, id int64, platformPostID string, at time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	PostedSince(ctx context.Context, since time.Time) ([]domain.PostRecord, error)
	FailScheduled(ctx context.Context, platforms []domain.Platform, reason string) (int64, error)
	DeleteFailedBefore(ctx context.Context, before time.Time) (int64, error)
	Recent(ctx context.Context, limit int) ([]domain.PostRecord, error)
}

type AnalyticsStore interface {
	Append(ctx context.Context, postID int64, samples []domain.AnalyticsSample) error
}

type Generator interface {
	Generate(ctx context.Context, platform domain.Platform, theme string) (*domain.Content, error)
}

type Publisher interface {
	Platform() domain.Platform
	Authenticate(ctx context.Context) (bool, error)
	Publish(ctx context.Context, text string, hashtags, media []string) (string, error)
	Metrics(ctx context.Context, postID string) (map[string]int64, error)
	Delete(ctx context.Context, postID string) error
	TrendingTopics(ctx context.Context) ([]string, error)
}

type RateLimiter interface {
	ShouldPost(ctx context.Context, platform domain.Platform) (bool, error)
	RecordPost(ctx context.Context, platform domain.Platform, at time.Time) error
	Counts(ctx context.Context) (map[domain.Platform]int, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher announces terminal post outcomes to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, post *domain.PostRecord) error
	Close() error
}
