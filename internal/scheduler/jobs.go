package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"social_autoposter/internal/domain"
)

type JobKind string

const (
	KindDispatch  JobKind = "dispatch"
	KindBatch     JobKind = "batch"
	KindAnalytics JobKind = "analytics"
	KindCleanup   JobKind = "cleanup"
	KindHealth    JobKind = "health"
)

// Job is one trigger. Next is owned by the polling loop.
type Job struct {
	Name     string
	Kind     JobKind
	Platform domain.Platform
	Theme    string
	Spec     string
	Next     time.Time

	schedule cron.Schedule
}

func newJob(name string, kind JobKind, spec string, now time.Time) (*Job, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse trigger %q: %w", spec, err)
	}
	return &Job{
		Name:     name,
		Kind:     kind,
		Spec:     spec,
		Next:     schedule.Next(now),
		schedule: schedule,
	}, nil
}

func dailySpec(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// buildJobs creates one dispatch trigger per platform, theme and optimal hour
// with a random minute fixed at build time, plus the batch, analytics, health
// and cleanup triggers.
func (s *Scheduler) buildJobs(platforms []domain.Platform, now time.Time) []*Job {
	var jobs []*Job
	add := func(j *Job, err error) *Job {
		if err != nil {
			s.logger.Error("skip invalid trigger", "error", err)
			return nil
		}
		jobs = append(jobs, j)
		return j
	}

	for _, platform := range platforms {
		for _, theme := range s.themes {
			for _, hour := range s.deps.Selector.Hours(platform) {
				name := fmt.Sprintf("post_%s_%s_%02d", platform, theme, hour)
				if j := add(newJob(name, KindDispatch, dailySpec(hour, s.deps.Selector.RandomMinute()), now)); j != nil {
					j.Platform = platform
					j.Theme = theme
				}
			}
		}
	}

	add(newJob("batch_content", KindBatch, "@every "+s.cfg.BatchInterval.String(), now))
	add(newJob("collect_analytics", KindAnalytics, "@every "+s.cfg.AnalyticsInterval.String(), now))
	add(newJob("health_check", KindHealth, "@every "+s.cfg.HealthInterval.String(), now))

	if hour, minute, err := s.cfg.CleanupClock(); err == nil {
		add(newJob("cleanup_failed", KindCleanup, dailySpec(hour, minute), now))
	} else {
		s.logger.Error("skip cleanup trigger", "error", err)
	}

	return jobs
}

type JobInfo struct {
	Name    string    `json:"name"`
	Kind    JobKind   `json:"kind"`
	NextRun time.Time `json:"next_run"`
}

type Status struct {
	Running                bool                     `json:"is_running"`
	AuthenticatedPlatforms []domain.Platform        `json:"authenticated_platforms"`
	ScheduledJobCount      int                      `json:"scheduled_job_count"`
	PostingHistoryCounts   map[domain.Platform]int  `json:"posting_history_counts"`
	NextJobs               []JobInfo                `json:"next_jobs"`
	Performance            *domain.PerformanceStats `json:"performance,omitempty"`
}

const statusNextJobs = 5

// Status returns a point-in-time snapshot with the soonest jobs first.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	st := Status{
		Running:                s.running,
		AuthenticatedPlatforms: append([]domain.Platform{}, s.active...),
		ScheduledJobCount:      len(s.jobs),
	}
	next := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		next = append(next, JobInfo{Name: j.Name, Kind: j.Kind, NextRun: j.Next})
	}
	s.mu.RUnlock()

	sort.Slice(next, func(a, b int) bool {
		if next[a].NextRun.Equal(next[b].NextRun) {
			return next[a].Name < next[b].Name
		}
		return next[a].NextRun.Before(next[b].NextRun)
	})
	if len(next) > statusNextJobs {
		next = next[:statusNextJobs]
	}
	st.NextJobs = next

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	counts, err := s.deps.Limiter.Counts(ctx)
	if err != nil {
		s.logger.Warn("read posting history", "error", err)
		counts = map[domain.Platform]int{}
	}
	st.PostingHistoryCounts = counts

	since := s.now().Add(-s.cfg.StatsWindow)
	if stats, err := s.deps.Posts.Stats(ctx, since); err != nil {
		s.logger.Warn("read posting stats", "error", err)
	} else {
		st.Performance = domain.NewPerformanceStats(since, stats)
	}

	return st
}
