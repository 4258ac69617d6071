package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"social_autoposter/internal/config"
	"social_autoposter/internal/domain"
	"social_autoposter/internal/metrics"
)

// SlotSelector picks the time a planned post should go out.
type SlotSelector interface {
	NextOptimalTime(platform domain.Platform, now time.Time) time.Time
}

// PlannerService pre-generates content for every platform and theme and
// stores it as scheduled posts.
type PlannerService struct {
	posts     PostStore
	generator Generator
	selector  SlotSelector
	metrics   *metrics.Metrics
	logger    *slog.Logger
	config    config.BatchConfig

	now func() time.Time
}

func NewPlannerService(
	posts PostStore,
	generator Generator,
	selector SlotSelector,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg config.BatchConfig,
) *PlannerService {
	return &PlannerService{
		posts:     posts,
		generator: generator,
		selector:  selector,
		metrics:   m,
		logger:    logger.With("component", "planner"),
		config:    cfg,
		now:       time.Now,
	}
}

type plannedPiece struct {
	platform domain.Platform
	theme    string
	content  *domain.Content
}

// Run generates config.PerCombination pieces per (platform, theme). Failed
// generations are logged and dropped; the error return is reserved for a
// cancelled context.
func (s *PlannerService) Run(ctx context.Context, platforms []domain.Platform, themes []string) (*domain.BatchStats, error) {
	startTime := time.Now()
	stats := &domain.BatchStats{
		Requested: len(platforms) * len(themes) * s.config.PerCombination,
	}

	s.logger.Info("starting batch generation",
		"platforms", len(platforms),
		"themes", len(themes),
		"per_combination", s.config.PerCombination,
		"concurrency", s.config.Concurrency,
	)

	limit := int64(s.config.Concurrency)
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	var (
		mu     sync.Mutex
		pieces []plannedPiece
	)

	var g errgroup.Group
	for _, platform := range platforms {
		for _, theme := range themes {
			for i := 0; i < s.config.PerCombination; i++ {
				if err := sem.Acquire(ctx, 1); err != nil {
					_ = g.Wait()
					return stats, fmt.Errorf("acquire generation slot: %w", err)
				}

				g.Go(func() error {
					defer sem.Release(1)

					content, err := s.generate(ctx, platform, theme)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						stats.Failed++
						s.logger.Warn("batch generation failed",
							"platform", platform,
							"theme", theme,
							"error", err,
						)
						return nil
					}
					pieces = append(pieces, plannedPiece{platform: platform, theme: theme, content: content})
					return nil
				})
			}
		}
	}
	_ = g.Wait()

	stats.Generated = len(pieces)
	now := s.now()
	for _, piece := range pieces {
		post := domain.NewDraft(piece.platform, piece.theme, *piece.content)
		if err := post.Schedule(s.selector.NextOptimalTime(piece.platform, now)); err != nil {
			stats.Failed++
			continue
		}
		if err := s.posts.Create(ctx, post); err != nil {
			stats.Failed++
			s.logger.Error("store planned post failed", "platform", piece.platform, "error", err)
			continue
		}
		stats.Stored++
	}

	stats.Duration = time.Since(startTime)
	s.metrics.Batch(stats)

	s.logger.Info("batch generation completed",
		"requested", stats.Requested,
		"generated", stats.Generated,
		"stored", stats.Stored,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *PlannerService) generate(ctx context.Context, platform domain.Platform, theme string) (c *domain.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()

	c, err = s.generator.Generate(ctx, platform, theme)
	if err != nil {
		return nil, err
	}
	if c == nil || c.Text == "" {
		return nil, ErrEmptyContent
	}
	return c, nil
}
