package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPerformanceStats(t *testing.T) {
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	ps := NewPerformanceStats(since, []PlatformStats{
		{Platform: Facebook, Total: 2, Scheduled: 1, Failed: 1},
		{Platform: Twitter, Total: 5, Posted: 4, Failed: 1, Engagement: 30},
	})

	assert.Equal(t, since, ps.Since)
	assert.Equal(t, 7, ps.TotalPosts)
	assert.Equal(t, 4, ps.Successful)
	assert.Equal(t, 2, ps.Failed)
	assert.Equal(t, int64(30), ps.Engagement)
	assert.Len(t, ps.Platforms, 2)
}

func TestNewPerformanceStats_Empty(t *testing.T) {
	ps := NewPerformanceStats(time.Now(), nil)

	assert.Zero(t, ps.TotalPosts)
	assert.NotNil(t, ps.Platforms)
}
