package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"social_autoposter/internal/domain"
)

var idPrefix = map[domain.Platform]string{
	domain.Twitter:   "tw",
	domain.Facebook:  "fb",
	domain.Instagram: "ig",
	domain.LinkedIn:  "li",
	domain.TikTok:    "tt",
}

// DryRun accepts every post without contacting the platform and hands back
// synthetic ids. It is only used when a platform is configured with dry_run.
type DryRun struct {
	platform domain.Platform
	logger   *slog.Logger
}

func NewDryRun(platform domain.Platform, logger *slog.Logger) *DryRun {
	return &DryRun{
		platform: platform,
		logger:   logger.With("component", "dry_run", "platform", platform),
	}
}

func (d *DryRun) Platform() domain.Platform { return d.platform }

func (d *DryRun) Authenticate(context.Context) (bool, error) { return true, nil }

func (d *DryRun) Publish(_ context.Context, text string, hashtags, _ []string) (string, error) {
	prefix, ok := idPrefix[d.platform]
	if !ok {
		prefix = string(d.platform)
	}
	id := fmt.Sprintf("%s_%s", prefix, uuid.New().String()[:8])

	d.logger.Info("dry run publish", "post_id", id, "text", Format(d.platform, text, hashtags))
	return id, nil
}

func (d *DryRun) Metrics(context.Context, string) (map[string]int64, error) {
	return nil, ErrNotImplemented
}

func (d *DryRun) Delete(context.Context, string) error { return nil }

func (d *DryRun) TrendingTopics(context.Context) ([]string, error) {
	return nil, ErrNotImplemented
}
