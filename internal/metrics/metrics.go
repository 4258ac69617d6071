package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"social_autoposter/internal/domain"
)

const namespace = "autoposter"

// Metrics groups the engine's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	dispatchTotal   *prometheus.CounterVec
	fallbackTotal   *prometheus.CounterVec
	batchPieces     *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	tickDuration    prometheus.Histogram
	publishAttempts *prometheus.CounterVec
	analyticsTotal  prometheus.Counter
	schedulerUp     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		dispatchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Dispatch runs by platform and outcome",
			},
			[]string{"platform", "outcome"}, // skipped, posted, failed, error
		),
		fallbackTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_content_total",
				Help:      "Static fallback content used after a generation failure",
			},
			[]string{"theme"},
		),
		batchPieces: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_pieces_total",
				Help:      "Batch planner generation results",
			},
			[]string{"result"}, // stored, failed
		),
		jobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Scheduler trigger executions",
			},
			[]string{"kind", "status"},
		),
		jobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of scheduler trigger executions in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"kind"},
		),
		tickDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Duration of one scheduler poll tick in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		publishAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_attempts_total",
				Help:      "Platform publish attempts including retries",
			},
			[]string{"platform", "status"},
		),
		analyticsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analytics_samples_total",
				Help:      "Analytics samples stored",
			},
		),
		schedulerUp: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_running",
				Help:      "1 while the scheduler loop is running",
			},
		),
	}
}

func (m *Metrics) Dispatch(platform domain.Platform, outcome domain.DispatchOutcome) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(string(platform), string(outcome)).Inc()
}

func (m *Metrics) Fallback(theme string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(theme).Inc()
}

func (m *Metrics) Batch(stats *domain.BatchStats) {
	if m == nil || stats == nil {
		return
	}
	m.batchPieces.WithLabelValues("stored").Add(float64(stats.Stored))
	m.batchPieces.WithLabelValues("failed").Add(float64(stats.Failed))
}

func (m *Metrics) Job(kind string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.jobRuns.WithLabelValues(kind, status).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) Tick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) PublishAttempt(platform domain.Platform, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.publishAttempts.WithLabelValues(string(platform), status).Inc()
}

func (m *Metrics) AnalyticsSamples(n int) {
	if m == nil {
		return
	}
	m.analyticsTotal.Add(float64(n))
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.schedulerUp.Set(1)
	} else {
		m.schedulerUp.Set(0)
	}
}
