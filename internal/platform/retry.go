package platform

import (
	"context"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"social_autoposter/internal/config"
	"social_autoposter/internal/metrics"
)

// RetryingPublisher retries Publish with exponential backoff. Other calls go
// straight to the wrapped publisher.
type RetryingPublisher struct {
	Publisher
	executor       failsafe.Executor[string]
	attemptTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewRetryingPublisher wraps p. With the defaults a failing publish is tried
// three times, waiting 1s and then 2s between attempts.
func NewRetryingPublisher(p Publisher, cfg config.PublishConfig, m *metrics.Metrics, logger *slog.Logger) *RetryingPublisher {
	retries := cfg.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	policy := retrypolicy.NewBuilder[string]().
		WithBackoff(cfg.InitialBackoff, cfg.MaxBackoff).
		WithMaxRetries(retries).
		HandleIf(func(_ string, err error) bool {
			return Retryable(err)
		}).
		Build()

	return &RetryingPublisher{
		Publisher:      p,
		executor:       failsafe.With[string](policy),
		attemptTimeout: cfg.Timeout,
		metrics:        m,
		logger:         logger.With("component", "publisher", "platform", p.Platform()),
	}
}

func (r *RetryingPublisher) Publish(ctx context.Context, text string, hashtags, media []string) (string, error) {
	attempt := 0
	return r.executor.WithContext(ctx).Get(func() (string, error) {
		attempt++

		attemptCtx, cancel := r.withTimeout(ctx)
		defer cancel()

		id, err := r.Publisher.Publish(attemptCtx, text, hashtags, media)
		r.metrics.PublishAttempt(r.Platform(), err)
		if err != nil {
			r.logger.Warn("publish attempt failed",
				"attempt", attempt,
				"retryable", Retryable(err),
				"error", err,
			)
			return "", err
		}
		if attempt > 1 {
			r.logger.Info("publish succeeded after retry", "attempt", attempt)
		}
		return id, nil
	})
}

func (r *RetryingPublisher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.attemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.attemptTimeout)
}
