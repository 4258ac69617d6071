package domain

import "time"

type DispatchOutcome string

const (
	OutcomeSkipped DispatchOutcome = "skipped"
	OutcomePosted  DispatchOutcome = "posted"
	OutcomeFailed  DispatchOutcome = "failed"
	OutcomeError   DispatchOutcome = "error"
)

// DispatchResult describes what a single dispatch did.
type DispatchResult struct {
	Platform Platform
	Theme    string
	Outcome  DispatchOutcome
	PostID   int64
	Reused   bool
	Fallback bool
	Err      error
}

// BatchStats holds statistics about a batch planning run.
type BatchStats struct {
	Requested int
	Generated int
	Failed    int
	Stored    int
	Duration  time.Duration
}

// AnalyticsStats holds statistics about one analytics collection run.
type AnalyticsStats struct {
	Posts    int
	Samples  int
	Errors   int
	Duration time.Duration
}

// PlatformStats aggregates the records one platform created in a window.
// Engagement sums the latest likes, shares, comments and their platform
// equivalents collected for each post.
type PlatformStats struct {
	Platform   Platform `json:"platform" db:"platform"`
	Total      int      `json:"total" db:"total"`
	Scheduled  int      `json:"scheduled" db:"scheduled"`
	Posted     int      `json:"posted" db:"posted"`
	Failed     int      `json:"failed" db:"failed"`
	Engagement int64    `json:"engagement" db:"engagement"`
}

// PerformanceStats is the windowed posting summary reported by status.
type PerformanceStats struct {
	Since      time.Time       `json:"since"`
	TotalPosts int             `json:"total_posts"`
	Successful int             `json:"successful_posts"`
	Failed     int             `json:"failed_posts"`
	Engagement int64           `json:"total_engagement"`
	Platforms  []PlatformStats `json:"platforms"`
}

// NewPerformanceStats sums per-platform rows into the window totals.
func NewPerformanceStats(since time.Time, platforms []PlatformStats) *PerformanceStats {
	ps := &PerformanceStats{Since: since, Platforms: platforms}
	if ps.Platforms == nil {
		ps.Platforms = []PlatformStats{}
	}
	for _, p := range platforms {
		ps.TotalPosts += p.Total
		ps.Successful += p.Posted
		ps.Failed += p.Failed
		ps.Engagement += p.Engagement
	}
	return ps
}
