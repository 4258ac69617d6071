package platform

import (
	"log/slog"

	"social_autoposter/internal/config"
	"social_autoposter/internal/domain"
	"social_autoposter/internal/metrics"
)

// FromConfig builds a retrying publisher for every enabled platform.
func FromConfig(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) []Publisher {
	var publishers []Publisher
	for _, p := range cfg.EnabledPlatforms() {
		pc := cfg.Platforms[string(p)]
		publishers = append(publishers, NewRetryingPublisher(newPublisher(p, pc, cfg.Publish, logger), cfg.Publish, m, logger))
	}
	return publishers
}

func newPublisher(p domain.Platform, pc config.PlatformConfig, publish config.PublishConfig, logger *slog.Logger) Publisher {
	if pc.DryRun {
		return NewDryRun(p, logger)
	}

	switch p {
	case domain.Twitter:
		return NewTwitter(pc, publish.Timeout)
	case domain.Facebook:
		return NewFacebook(pc, publish.Timeout)
	case domain.Instagram:
		return NewInstagram(pc, publish.Timeout)
	case domain.LinkedIn:
		return NewLinkedIn(pc, publish.Timeout)
	default:
		return NewTikTok()
	}
}
