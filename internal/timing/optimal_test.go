package timing

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"social_autoposter/internal/domain"
)

func newTestSelector() *Selector {
	return NewSelector(map[string][]int{
		"twitter": {20, 8, 17, 12},
		"tiktok":  {16, 18, 20, 22},
	}, rand.New(rand.NewPCG(1, 2)))
}

func TestNextOptimalTime_SameDay(t *testing.T) {
	s := newTestSelector()
	now := time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC)

	got := s.NextOptimalTime(domain.Twitter, now)

	assert.Equal(t, 20, got.Hour())
	assert.Equal(t, now.YearDay(), got.YearDay())
	assert.Less(t, got.Minute(), 59)
	assert.Zero(t, got.Second())
	assert.Zero(t, got.Nanosecond())
}

func TestNextOptimalTime_RollsToTomorrow(t *testing.T) {
	s := newTestSelector()
	now := time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC)

	got := s.NextOptimalTime(domain.Twitter, now)

	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, 11, got.Day())
}

func TestNextOptimalTime_MonthAndYearBoundary(t *testing.T) {
	s := newTestSelector()
	now := time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)

	got := s.NextOptimalTime(domain.TikTok, now)

	assert.Equal(t, time.Date(2025, 1, 1, 16, got.Minute(), 0, 0, time.UTC), got)
}

func TestNextOptimalTime_HourEqualToOptimalIsSkipped(t *testing.T) {
	s := newTestSelector()
	now := time.Date(2024, 3, 10, 12, 59, 0, 0, time.UTC)

	got := s.NextOptimalTime(domain.Twitter, now)

	assert.Equal(t, 17, got.Hour())
}

func TestNextOptimalTime_AlwaysInFuture(t *testing.T) {
	s := newTestSelector()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, platform := range []domain.Platform{domain.Twitter, domain.TikTok, domain.LinkedIn} {
		for m := 0; m < 48*60; m += 7 {
			now := start.Add(time.Duration(m) * time.Minute)
			got := s.NextOptimalTime(platform, now)
			assert.True(t, got.After(now), "platform %s now %s got %s", platform, now, got)

			hours := s.Hours(platform)
			if now.Hour() >= hours[len(hours)-1] {
				assert.Equal(t, hours[0], got.Hour())
				assert.Equal(t, now.AddDate(0, 0, 1).Day(), got.Day())
			}
		}
	}
}

func TestHours_FallbackForUnknownPlatform(t *testing.T) {
	s := newTestSelector()
	assert.Equal(t, []int{9, 15, 21}, s.Hours(domain.LinkedIn))
	assert.Equal(t, []int{8, 12, 17, 20}, s.Hours(domain.Twitter))
}
