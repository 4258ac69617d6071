package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"social_autoposter/internal/domain"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Dispatch(domain.Twitter, domain.OutcomePosted)
	m.Dispatch(domain.Twitter, domain.OutcomePosted)
	m.Dispatch(domain.Facebook, domain.OutcomeSkipped)
	m.Fallback("motivation")
	m.Batch(&domain.BatchStats{Stored: 5, Failed: 2})
	m.PublishAttempt(domain.LinkedIn, errors.New("boom"))
	m.AnalyticsSamples(3)
	m.Job("dispatch", true, time.Second)
	m.SetRunning(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("twitter", "posted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("facebook", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbackTotal.WithLabelValues("motivation")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.batchPieces.WithLabelValues("stored")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.batchPieces.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishAttempts.WithLabelValues("linkedin", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.analyticsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("dispatch", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.schedulerUp))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Dispatch(domain.Twitter, domain.OutcomeFailed)
		m.Fallback("x")
		m.Batch(&domain.BatchStats{})
		m.Job("cleanup", false, 0)
		m.Tick(time.Millisecond)
		m.PublishAttempt(domain.TikTok, nil)
		m.AnalyticsSamples(1)
		m.SetRunning(false)
	})
}
