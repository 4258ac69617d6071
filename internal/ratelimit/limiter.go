package ratelimit

import (
	"context"
	"sync"
	"time"

	"social_autoposter/internal/config"
	"social_autoposter/internal/domain"
)

// Window is the trailing period a platform's posts are counted over.
const Window = 24 * time.Hour

// Limits resolves the daily cap for a platform.
type Limits struct {
	MaxPostsPerDay int
	PerPlatform    map[domain.Platform]int
}

func (l Limits) For(platform domain.Platform) int {
	if n, ok := l.PerPlatform[platform]; ok {
		return n
	}
	return l.MaxPostsPerDay
}

// Limiter keeps per-platform posting history in memory. History does not
// survive a restart unless restored with Restore.
type Limiter struct {
	mu      sync.Mutex
	limits  Limits
	history map[domain.Platform][]time.Time
	now     func() time.Time
}

func New(limits Limits) *Limiter {
	return &Limiter{
		limits:  limits,
		history: make(map[domain.Platform][]time.Time),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) ShouldPost(_ context.Context, platform domain.Platform) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.prune(platform)) < l.limits.For(platform), nil
}

func (l *Limiter) RecordPost(_ context.Context, platform domain.Platform, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history[platform] = append(l.history[platform], at)
	return nil
}

// Counts returns the number of posts per platform inside the window.
func (l *Limiter) Counts(_ context.Context) (map[domain.Platform]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[domain.Platform]int, len(l.history))
	for platform := range l.history {
		counts[platform] = len(l.prune(platform))
	}
	return counts, nil
}

// Restore replaces a platform's history, e.g. from posted records after a
// restart.
func (l *Limiter) Restore(platform domain.Platform, times []time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history[platform] = append([]time.Time(nil), times...)
	l.prune(platform)
}

// prune drops timestamps older than Window. Caller holds mu.
func (l *Limiter) prune(platform domain.Platform) []time.Time {
	cutoff := l.now().Add(-Window)
	kept := l.history[platform][:0]
	for _, t := range l.history[platform] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.history[platform] = kept
	return kept
}

func LimitsFromConfig(cfg config.RateLimitConfig) Limits {
	per := make(map[domain.Platform]int, len(cfg.PerPlatform))
	for name, n := range cfg.PerPlatform {
		per[domain.Platform(name)] = n
	}
	return Limits{MaxPostsPerDay: cfg.MaxPostsPerDay, PerPlatform: per}
}
