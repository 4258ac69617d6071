package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"social_autoposter/internal/config"
	"social_autoposter/internal/domain"
	"social_autoposter/internal/metrics"
)

var (
	ErrNotInitialized   = errors.New("scheduler not initialized")
	ErrPlatformInactive = errors.New("platform not authenticated")
)

const staleReason = "platform not authenticated"

type Dispatcher interface {
	Run(ctx context.Context, platform domain.Platform, theme string) *domain.DispatchResult
	DispatchNow(ctx context.Context, platform domain.Platform, text string, hashtags []string) (string, error)
}

type Planner interface {
	Run(ctx context.Context, platforms []domain.Platform, themes []string) (*domain.BatchStats, error)
}

type Collector interface {
	Run(ctx context.Context, platforms []domain.Platform) (*domain.AnalyticsStats, error)
}

type Cleaner interface {
	Run(ctx context.Context) (int64, error)
}

type Authenticator interface {
	Platform() domain.Platform
	Authenticate(ctx context.Context) (bool, error)
}

// PostStore is the slice of the post store the scheduler reads and repairs.
type PostStore interface {
	PostedSince(ctx context.Context, since time.Time) ([]domain.PostRecord, error)
	FailScheduled(ctx context.Context, platforms []domain.Platform, reason string) (int64, error)
	Stats(ctx context.Context, since time.Time) ([]domain.PlatformStats, error)
}

type Limiter interface {
	Counts(ctx context.Context) (map[domain.Platform]int, error)
}

// restorer is implemented by limiters that keep history in process memory.
type restorer interface {
	Restore(platform domain.Platform, times []time.Time)
}

type HourSelector interface {
	Hours(platform domain.Platform) []int
	RandomMinute() int
}

type Deps struct {
	Publishers []Authenticator
	Dispatcher Dispatcher
	Planner    Planner
	Collector  Collector
	Cleaner    Cleaner
	Posts      PostStore
	Limiter    Limiter
	Selector   HourSelector
	Metrics    *metrics.Metrics
}

// Scheduler owns the trigger list and a single polling goroutine that runs
// due jobs one at a time.
type Scheduler struct {
	deps   Deps
	cfg    config.ScheduleConfig
	themes []string
	logger *slog.Logger

	mu          sync.RWMutex
	initialized bool
	running     bool
	active      []domain.Platform
	jobs        []*Job
	cancel      context.CancelFunc
	done        chan struct{}

	closers   []io.Closer
	closeOnce sync.Once
	stopped   chan struct{}

	now func() time.Time
}

func New(deps Deps, cfg config.ScheduleConfig, themes []string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		deps:    deps,
		cfg:     cfg,
		themes:  themes,
		logger:  logger.With("component", "scheduler"),
		stopped: make(chan struct{}),
		now:     time.Now,
	}
}

// RegisterCloser adds a resource that Stop closes, in registration order.
func (s *Scheduler) RegisterCloser(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, c)
}

// Done is closed once Stop has released all registered resources.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

// Initialize authenticates every publisher and rebuilds the trigger list for
// the platforms that passed. It returns false when none did.
func (s *Scheduler) Initialize(ctx context.Context) bool {
	active, inactive := s.authenticate(ctx)
	jobs := s.buildJobs(active, s.now())

	s.mu.Lock()
	s.active = active
	s.jobs = jobs
	s.initialized = len(active) > 0
	s.mu.Unlock()

	if len(inactive) > 0 {
		n, err := s.deps.Posts.FailScheduled(ctx, inactive, staleReason)
		if err != nil {
			s.logger.Error("fail stale scheduled posts", "platforms", inactive, "error", err)
		} else if n > 0 {
			s.logger.Warn("failed stale scheduled posts", "platforms", inactive, "count", n)
		}
	}

	if len(active) == 0 {
		s.logger.Error("no platform authenticated, scheduler cannot start")
		return false
	}

	s.seedLimiter(ctx, active)

	s.logger.Info("scheduler initialized",
		"platforms", active,
		"themes", s.themes,
		"jobs", len(jobs),
	)
	return true
}

func (s *Scheduler) authenticate(ctx context.Context) (active, inactive []domain.Platform) {
	ok := make([]bool, len(s.deps.Publishers))

	var g errgroup.Group
	for i, p := range s.deps.Publishers {
		g.Go(func() error {
			authed, err := p.Authenticate(ctx)
			if err != nil {
				s.logger.Warn("authentication failed", "platform", p.Platform(), "error", err)
				return nil
			}
			if !authed {
				s.logger.Warn("credentials rejected", "platform", p.Platform())
			}
			ok[i] = authed
			return nil
		})
	}
	_ = g.Wait()

	for i, p := range s.deps.Publishers {
		if ok[i] {
			active = append(active, p.Platform())
		} else {
			inactive = append(inactive, p.Platform())
		}
	}
	return active, inactive
}

// seedLimiter rebuilds in-memory posting history from the store. Limiters that
// persist their own history are left alone.
func (s *Scheduler) seedLimiter(ctx context.Context, platforms []domain.Platform) {
	r, ok := s.deps.Limiter.(restorer)
	if !ok {
		return
	}

	posted, err := s.deps.Posts.PostedSince(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		s.logger.Error("load posting history", "error", err)
		return
	}

	history := make(map[domain.Platform][]time.Time)
	for _, p := range posted {
		if p.PostedTime != nil {
			history[p.Platform] = append(history[p.Platform], *p.PostedTime)
		}
	}
	for _, platform := range platforms {
		r.Restore(platform, history[platform])
	}

	s.logger.Debug("rate limiter seeded", "posts", len(posted))
}

// Start launches the polling loop and returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("scheduler already running")
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.deps.Metrics.SetRunning(true)
	s.logger.Info("scheduler started", "poll_interval", s.cfg.PollInterval)

	go s.loop(loopCtx, done)
	go s.handleSignals(loopCtx)

	return nil
}

func (s *Scheduler) handleSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
		s.Stop()
	case <-ctx.Done():
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler loop stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler tick panicked", "panic", r)
		}
		s.deps.Metrics.Tick(time.Since(start))
	}()

	s.RunPending(ctx, s.now())
}

// Stop halts the loop, waits up to the stop timeout for the current job and
// closes registered resources. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if wasRunning {
		cancel()
		select {
		case <-done:
		case <-time.After(s.cfg.StopTimeout):
			s.logger.Warn("scheduler loop did not stop in time", "timeout", s.cfg.StopTimeout)
		}
		s.deps.Metrics.SetRunning(false)
		s.logger.Info("scheduler stopped")
	}

	s.closeOnce.Do(s.closeResources)
}

func (s *Scheduler) closeResources() {
	s.mu.RLock()
	closers := append([]io.Closer(nil), s.closers...)
	s.mu.RUnlock()

	for _, c := range closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("close resource", "error", err)
		}
	}
	close(s.stopped)
}

// RunPending runs every job due at now, oldest due time first, and returns how
// many ran. Each job's next run is computed after it returns. Cancelling ctx
// stops it between jobs; a job already running is left to finish.
func (s *Scheduler) RunPending(ctx context.Context, now time.Time) int {
	s.mu.RLock()
	var due []*Job
	for _, j := range s.jobs {
		if !j.Next.After(now) {
			due = append(due, j)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(due, func(a, b int) bool {
		if due[a].Next.Equal(due[b].Next) {
			return due[a].Name < due[b].Name
		}
		return due[a].Next.Before(due[b].Next)
	})

	ran := 0
	for _, j := range due {
		if ctx.Err() != nil {
			break
		}
		s.runJob(ctx, j)
		ran++

		s.mu.Lock()
		j.Next = j.schedule.Next(s.now())
		s.mu.Unlock()
	}
	return ran
}

func (s *Scheduler) runJob(ctx context.Context, j *Job) {
	logger := s.logger.With("run_id", uuid.NewString(), "job", j.Name)
	start := time.Now()
	ok := false

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r)
			ok = false
		}
		s.deps.Metrics.Job(string(j.Kind), ok, time.Since(start))
	}()

	// Stop suppresses the next job, never the running one.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.JobTimeout)
	defer cancel()

	var err error
	switch j.Kind {
	case KindDispatch:
		if !s.isActive(j.Platform) {
			logger.Debug("platform no longer active, skipping")
			ok = true
			return
		}
		res := s.deps.Dispatcher.Run(jobCtx, j.Platform, j.Theme)
		if res.Outcome == domain.OutcomeError {
			err = res.Err
		}
		logger.Debug("dispatch finished", "outcome", res.Outcome, "post_id", res.PostID)
	case KindBatch:
		var stats *domain.BatchStats
		stats, err = s.deps.Planner.Run(jobCtx, s.activePlatforms(), s.themes)
		if err == nil {
			logger.Debug("batch finished", "stored", stats.Stored)
		}
	case KindAnalytics:
		_, err = s.deps.Collector.Run(jobCtx, s.activePlatforms())
	case KindCleanup:
		_, err = s.deps.Cleaner.Run(jobCtx)
	case KindHealth:
		s.checkHealth(jobCtx)
	default:
		err = fmt.Errorf("unknown job kind %q", j.Kind)
	}

	if err != nil {
		logger.Error("job failed", "error", err)
		return
	}
	ok = true
}

// checkHealth re-authenticates every publisher and narrows or widens the
// active set. Dispatch triggers of platforms that stay active keep their
// baked minute; records of platforms that drop out are left scheduled so they
// go out once the platform recovers.
func (s *Scheduler) checkHealth(ctx context.Context) {
	active, inactive := s.authenticate(ctx)

	s.mu.RLock()
	previous := append([]domain.Platform(nil), s.active...)
	s.mu.RUnlock()

	added := diff(active, previous)
	removed := diff(previous, active)
	if len(added) == 0 && len(removed) == 0 {
		s.logger.Debug("health check passed", "platforms", active)
		return
	}

	jobs := s.buildJobs(active, s.now())

	s.mu.Lock()
	existing := make(map[string]*Job, len(s.jobs))
	for _, j := range s.jobs {
		existing[j.Name] = j
	}
	for i, j := range jobs {
		if old, ok := existing[j.Name]; ok {
			jobs[i] = old
		}
	}
	s.active = active
	s.jobs = jobs
	s.mu.Unlock()

	if len(added) > 0 {
		s.seedLimiter(ctx, added)
	}

	s.logger.Warn("active platforms changed",
		"active", active,
		"added", added,
		"removed", removed,
		"unavailable", inactive,
		"jobs", len(jobs),
	)
}

func diff(a, b []domain.Platform) []domain.Platform {
	var out []domain.Platform
	for _, p := range a {
		if !slices.Contains(b, p) {
			out = append(out, p)
		}
	}
	return out
}

// DispatchNow publishes content immediately on an authenticated platform.
func (s *Scheduler) DispatchNow(ctx context.Context, platform domain.Platform, text string, hashtags []string) (string, error) {
	if !s.isActive(platform) {
		return "", fmt.Errorf("%w: %s", ErrPlatformInactive, platform)
	}
	return s.deps.Dispatcher.DispatchNow(ctx, platform, text, hashtags)
}

func (s *Scheduler) activePlatforms() []domain.Platform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Platform(nil), s.active...)
}

func (s *Scheduler) isActive(platform domain.Platform) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.active, platform)
}
