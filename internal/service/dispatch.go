package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"social_autoposter/internal/domain"
	"social_autoposter/internal/metrics"
)

var (
	ErrPlatformUnavailable = errors.New("platform not available")
	ErrEmptyContent        = errors.New("content is empty")
	errEmptyPostID         = errors.New("platform returned empty post id")
)

// persistTimeout bounds the status writes that follow a publish attempt.
const persistTimeout = 10 * time.Second

// DispatchService runs one generate-or-reuse and publish cycle for a
// (platform, theme) pair. Scheduled and manual dispatches for the same
// platform never overlap, so a record being published cannot be picked up as
// due by another dispatch.
type DispatchService struct {
	posts      PostStore
	generator  Generator
	publishers map[domain.Platform]Publisher
	locks      map[domain.Platform]*sync.Mutex
	limiter    RateLimiter
	events     EventPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	now  func() time.Time
	pick func(n int) int
}

// NewDispatchService builds a dispatcher. events and m may be nil.
func NewDispatchService(
	posts PostStore,
	generator Generator,
	publishers []Publisher,
	limiter RateLimiter,
	events EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *DispatchService {
	byPlatform := make(map[domain.Platform]Publisher, len(publishers))
	locks := make(map[domain.Platform]*sync.Mutex, len(publishers))
	for _, p := range publishers {
		byPlatform[p.Platform()] = p
		locks[p.Platform()] = &sync.Mutex{}
	}

	return &DispatchService{
		posts:      posts,
		generator:  generator,
		publishers: byPlatform,
		locks:      locks,
		limiter:    limiter,
		events:     events,
		metrics:    m,
		logger:     logger.With("component", "dispatch"),
		now:        time.Now,
		pick:       rand.IntN,
	}
}

// Run never returns an error: every failure is logged and reported through
// the result.
func (s *DispatchService) Run(ctx context.Context, platform domain.Platform, theme string) (result *domain.DispatchResult) {
	logger := s.logger.With(
		"run_id", uuid.NewString(),
		"platform", platform,
		"theme", theme,
	)
	result = &domain.DispatchResult{Platform: platform, Theme: theme}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch panicked", "panic", r)
			result.Outcome = domain.OutcomeError
			result.Err = fmt.Errorf("dispatch panic: %v", r)
		}
		s.metrics.Dispatch(platform, result.Outcome)
	}()

	fail := func(msg string, err error) *domain.DispatchResult {
		logger.Error(msg, "error", err)
		result.Outcome = domain.OutcomeError
		result.Err = err
		return result
	}

	publisher, ok := s.publishers[platform]
	if !ok {
		return fail("no publisher", fmt.Errorf("%w: %s", ErrPlatformUnavailable, platform))
	}

	mu := s.locks[platform]
	mu.Lock()
	defer mu.Unlock()

	allowed, err := s.limiter.ShouldPost(ctx, platform)
	if err != nil {
		return fail("rate limit check failed", fmt.Errorf("check rate limit: %w", err))
	}
	if !allowed {
		logger.Info("rate limit reached, skipping")
		result.Outcome = domain.OutcomeSkipped
		return result
	}

	post, err := s.posts.NextDue(ctx, platform, s.now())
	if err != nil {
		return fail("lookup due post failed", fmt.Errorf("next due post: %w", err))
	}

	if post != nil {
		result.Reused = true
		logger.Debug("reusing scheduled post", "post_id", post.ID)
	} else {
		content := s.content(ctx, platform, theme, logger)
		result.Fallback = content.Fallback

		post, err = s.createScheduled(ctx, domain.NewDraft(platform, theme, content))
		if err != nil {
			return fail("create post failed", err)
		}
	}
	result.PostID = post.ID

	platformPostID, err := s.publish(ctx, publisher, post)
	if err != nil {
		result.Err = err
		if post.Status == domain.StatusFailed {
			logger.Warn("publish failed", "post_id", post.ID, "error", err)
			result.Outcome = domain.OutcomeFailed
			return result
		}
		return fail("record publish outcome failed", err)
	}

	logger.Info("post published", "post_id", post.ID, "platform_post_id", platformPostID)
	result.Outcome = domain.OutcomePosted
	return result
}

// DispatchNow publishes caller-supplied content immediately. It bypasses the
// rate limiter check but the post still counts toward the platform's window.
func (s *DispatchService) DispatchNow(ctx context.Context, platform domain.Platform, text string, hashtags []string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}
	publisher, ok := s.publishers[platform]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPlatformUnavailable, platform)
	}

	mu := s.locks[platform]
	mu.Lock()
	defer mu.Unlock()

	post, err := s.createScheduled(ctx, domain.NewDraft(platform, "manual", domain.Content{
		Text:     text,
		Hashtags: hashtags,
	}))
	if err != nil {
		return "", err
	}

	postID, err := s.publish(ctx, publisher, post)
	s.metrics.Dispatch(platform, outcomeOf(post, err))
	if err != nil {
		return "", err
	}

	s.logger.Info("manual post published",
		"platform", platform,
		"post_id", post.ID,
		"platform_post_id", postID,
	)
	return postID, nil
}

func (s *DispatchService) createScheduled(ctx context.Context, post *domain.PostRecord) (*domain.PostRecord, error) {
	if err := post.Schedule(s.now()); err != nil {
		return nil, err
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// content asks the generator and degrades to the static table on any failure.
func (s *DispatchService) content(ctx context.Context, platform domain.Platform, theme string, logger *slog.Logger) domain.Content {
	c, err := s.generate(ctx, platform, theme)
	if err == nil && (c == nil || strings.TrimSpace(c.Text) == "") {
		err = ErrEmptyContent
	}
	if err == nil {
		return *c
	}

	logger.Warn("content generation failed, using fallback", "error", err)
	s.metrics.Fallback(theme)
	return FallbackContent(theme, s.pick(len(fallbackTexts(theme))))
}

func (s *DispatchService) generate(ctx context.Context, platform domain.Platform, theme string) (c *domain.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	return s.generator.Generate(ctx, platform, theme)
}

// publish sends the post and persists the terminal status. When the platform
// rejects the post the returned error wraps the publish failure and post is
// left in the failed state. The status writes outlive ctx: once the platform
// has answered, the outcome is recorded even if the caller has gone away.
func (s *DispatchService) publish(ctx context.Context, publisher Publisher, post *domain.PostRecord) (string, error) {
	platformPostID, err := publisher.Publish(ctx, post.Content, post.Hashtags, post.Media)
	if err == nil && platformPostID == "" {
		err = errEmptyPostID
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err != nil {
		reason := err.Error()
		if merr := post.MarkFailed(reason); merr != nil {
			return "", errors.Join(err, merr)
		}
		if serr := s.posts.MarkFailed(ctx, post.ID, reason); serr != nil {
			return "", errors.Join(fmt.Errorf("publish: %w", err), fmt.Errorf("mark post failed: %w", serr))
		}
		s.announce(ctx, post)
		return "", fmt.Errorf("publish: %w", err)
	}

	at := s.now()
	if err := post.MarkPosted(platformPostID, at); err != nil {
		return "", err
	}
	// The platform has the post now, so it counts even if persisting fails.
	if err := s.limiter.RecordPost(ctx, post.Platform, at); err != nil {
		s.logger.Warn("record post in rate limiter failed", "platform", post.Platform, "error", err)
	}
	if err := s.posts.MarkPosted(ctx, post.ID, platformPostID, at); err != nil {
		return platformPostID, fmt.Errorf("mark post posted: %w", err)
	}
	s.announce(ctx, post)

	return platformPostID, nil
}

func (s *DispatchService) announce(ctx context.Context, post *domain.PostRecord) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, post); err != nil {
		s.logger.Warn("publish post event failed", "post_id", post.ID, "error", err)
	}
}

func outcomeOf(post *domain.PostRecord, err error) domain.DispatchOutcome {
	switch {
	case err == nil:
		return domain.OutcomePosted
	case post.Status == domain.StatusFailed:
		return domain.OutcomeFailed
	default:
		return domain.OutcomeError
	}
}
