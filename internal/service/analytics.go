package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"social_autoposter/internal/domain"
	"social_autoposter/internal/metrics"
	"social_autoposter/internal/platform"
)

// analyticsLookback bounds which posted records get their metrics refreshed.
const analyticsLookback = 24 * time.Hour

type AnalyticsService struct {
	posts      PostStore
	analytics  AnalyticsStore
	txManager  TransactionManager
	publishers map[domain.Platform]Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	now func() time.Time
}

func NewAnalyticsService(
	posts PostStore,
	analytics AnalyticsStore,
	txManager TransactionManager,
	publishers []Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AnalyticsService {
	byPlatform := make(map[domain.Platform]Publisher, len(publishers))
	for _, p := range publishers {
		byPlatform[p.Platform()] = p
	}

	return &AnalyticsService{
		posts:      posts,
		analytics:  analytics,
		txManager:  txManager,
		publishers: byPlatform,
		metrics:    m,
		logger:     logger.With("component", "analytics"),
		now:        time.Now,
	}
}

// Run collects metrics for posts published in the last day on the given
// platforms and appends them as samples.
func (s *AnalyticsService) Run(ctx context.Context, platforms []domain.Platform) (*domain.AnalyticsStats, error) {
	startTime := time.Now()
	now := s.now()

	posts, err := s.posts.PostedSince(ctx, now.Add(-analyticsLookback))
	if err != nil {
		return nil, fmt.Errorf("list posted: %w", err)
	}

	active := make(map[domain.Platform]bool, len(platforms))
	for _, p := range platforms {
		active[p] = true
	}

	stats := &domain.AnalyticsStats{}
	for i := range posts {
		post := &posts[i]
		if post.PlatformPostID == nil || !active[post.Platform] {
			continue
		}
		publisher, ok := s.publishers[post.Platform]
		if !ok {
			continue
		}

		values, err := publisher.Metrics(ctx, *post.PlatformPostID)
		if errors.Is(err, platform.ErrNotImplemented) {
			s.logger.Debug("metrics not supported", "platform", post.Platform)
			continue
		}
		if err != nil {
			stats.Errors++
			s.logger.Warn("fetch metrics failed", "post_id", post.ID, "platform", post.Platform, "error", err)
			continue
		}
		stats.Posts++

		samples := toSamples(post, values, now)
		if len(samples) == 0 {
			continue
		}

		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.analytics.Append(txCtx, post.ID, samples)
		})
		if err != nil {
			stats.Errors++
			s.logger.Error("store analytics failed", "post_id", post.ID, "error", err)
			continue
		}
		stats.Samples += len(samples)
	}

	stats.Duration = time.Since(startTime)
	s.metrics.AnalyticsSamples(stats.Samples)

	s.logger.Info("analytics collected",
		"posts", stats.Posts,
		"samples", stats.Samples,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, nil
}

func toSamples(post *domain.PostRecord, values map[string]int64, at time.Time) []domain.AnalyticsSample {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	samples := make([]domain.AnalyticsSample, 0, len(names))
	for _, name := range names {
		samples = append(samples, domain.AnalyticsSample{
			PostID:      post.ID,
			Platform:    post.Platform,
			MetricName:  name,
			MetricValue: values[name],
			CollectedAt: at,
		})
	}
	return samples
}
