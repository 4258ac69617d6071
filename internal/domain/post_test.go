package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRecord_Lifecycle_Posted(t *testing.T) {
	p := NewDraft(Twitter, "technology", Content{Text: "hello", Hashtags: []string{"tech"}})
	require.NoError(t, p.CheckInvariants())

	now := time.Now()
	require.NoError(t, p.Schedule(now))
	assert.Equal(t, StatusScheduled, p.Status)
	require.NoError(t, p.CheckInvariants())

	require.NoError(t, p.MarkPosted("tw_123", now))
	assert.Equal(t, StatusPosted, p.Status)
	assert.Equal(t, "tw_123", *p.PlatformPostID)
	require.NoError(t, p.CheckInvariants())
}

func TestPostRecord_Lifecycle_Failed(t *testing.T) {
	p := NewDraft(Facebook, "business", Content{Text: "hello"})
	require.NoError(t, p.Schedule(time.Now()))

	require.NoError(t, p.MarkFailed("rate limited"))
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, "rate limited", *p.ErrorMessage)
	assert.Nil(t, p.PostedTime)
	assert.Nil(t, p.PlatformPostID)
	require.NoError(t, p.CheckInvariants())
}

func TestPostRecord_TerminalStatesAreFinal(t *testing.T) {
	p := NewDraft(Twitter, "motivation", Content{Text: "hi"})
	require.NoError(t, p.Schedule(time.Now()))
	require.NoError(t, p.MarkFailed("boom"))

	assert.ErrorIs(t, p.MarkPosted("id", time.Now()), ErrInvalidTransition)
	assert.ErrorIs(t, p.MarkFailed("again"), ErrInvalidTransition)
	assert.ErrorIs(t, p.Schedule(time.Now()), ErrInvalidTransition)
	assert.Equal(t, "boom", *p.ErrorMessage)
}

func TestPostRecord_MarkPostedRequiresScheduled(t *testing.T) {
	p := NewDraft(Twitter, "motivation", Content{Text: "hi"})
	assert.ErrorIs(t, p.MarkPosted("id", time.Now()), ErrInvalidTransition)

	require.NoError(t, p.Schedule(time.Now()))
	assert.Error(t, p.MarkPosted("", time.Now()))
	assert.Equal(t, StatusScheduled, p.Status)
}

func TestPostRecord_MarkFailedDefaultsReason(t *testing.T) {
	p := NewDraft(LinkedIn, "business", Content{Text: "hi"})
	require.NoError(t, p.MarkFailed(""))
	assert.Equal(t, "unknown error", *p.ErrorMessage)
}

func TestPostRecord_CheckInvariants_DetectsViolations(t *testing.T) {
	id := "x"
	p := &PostRecord{Status: StatusScheduled, PlatformPostID: &id}
	assert.Error(t, p.CheckInvariants())

	msg := "err"
	p = &PostRecord{Status: StatusPosted, ErrorMessage: &msg}
	assert.Error(t, p.CheckInvariants())
}

func TestPlatform_Valid(t *testing.T) {
	assert.True(t, Twitter.Valid())
	assert.True(t, TikTok.Valid())
	assert.False(t, Platform("myspace").Valid())
}
