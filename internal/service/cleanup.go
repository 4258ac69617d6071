package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CleanupService purges failed posts past the retention window.
type CleanupService struct {
	posts     PostStore
	retention time.Duration
	logger    *slog.Logger

	now func() time.Time
}

func NewCleanupService(posts PostStore, retention time.Duration, logger *slog.Logger) *CleanupService {
	return &CleanupService{
		posts:     posts,
		retention: retention,
		logger:    logger.With("component", "cleanup"),
		now:       time.Now,
	}
}

func (s *CleanupService) Run(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)

	deleted, err := s.posts.DeleteFailedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete failed posts: %w", err)
	}

	s.logger.Info("cleanup completed", "deleted", deleted, "cutoff", cutoff)
	return deleted, nil
}
