package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"social_autoposter/internal/domain"
)

// RedisLimiter stores posting history in one sorted set per platform, scored
// by unix milliseconds, so history survives restarts.
type RedisLimiter struct {
	rdb    redis.UniversalClient
	prefix string
	limits Limits
	now    func() time.Time
}

func NewRedis(rdb redis.UniversalClient, prefix string, limits Limits) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		prefix: prefix,
		limits: limits,
		now:    time.Now,
	}
}

func (r *RedisLimiter) key(platform domain.Platform) string {
	return r.prefix + ":" + string(platform)
}

func (r *RedisLimiter) ShouldPost(ctx context.Context, platform domain.Platform) (bool, error) {
	n, err := r.count(ctx, platform)
	if err != nil {
		return false, err
	}
	return n < int64(r.limits.For(platform)), nil
}

func (r *RedisLimiter) RecordPost(ctx context.Context, platform domain.Platform, at time.Time) error {
	key := r.key(platform)
	ms := at.UnixMilli()

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(ms), Member: strconv.FormatInt(at.UnixNano(), 10)})
		pipe.Expire(ctx, key, Window+time.Hour)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record post: %w", err)
	}
	return nil
}

func (r *RedisLimiter) Counts(ctx context.Context) (map[domain.Platform]int, error) {
	counts := make(map[domain.Platform]int)
	for _, platform := range domain.AllPlatforms {
		n, err := r.count(ctx, platform)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[platform] = int(n)
		}
	}
	return counts, nil
}

func (r *RedisLimiter) count(ctx context.Context, platform domain.Platform) (int64, error) {
	key := r.key(platform)
	cutoff := r.now().Add(-Window).UnixMilli()

	var card *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		card = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return card.Val(), nil
}
