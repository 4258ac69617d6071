package domain

import (
	"errors"
	"fmt"
	"time"
)

type Platform string

const (
	Twitter   Platform = "twitter"
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	LinkedIn  Platform = "linkedin"
	TikTok    Platform = "tiktok"
)

// AllPlatforms lists every platform the engine knows how to schedule for.
var AllPlatforms = []Platform{Twitter, Facebook, Instagram, LinkedIn, TikTok}

func (p Platform) Valid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusScheduled PostStatus = "scheduled"
	StatusPosted    PostStatus = "posted"
	StatusFailed    PostStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s PostStatus) Terminal() bool {
	return s == StatusPosted || s == StatusFailed
}

var (
	ErrInvalidTransition = errors.New("invalid post status transition")
	ErrPostNotFound      = errors.New("post not found")
)

// PostRecord is one attempt to get a piece of content onto a platform.
type PostRecord struct {
	ID             int64      `db:"id" json:"id"`
	Content        string     `db:"content" json:"content"`
	Platform       Platform   `db:"platform" json:"platform"`
	Theme          string     `db:"theme" json:"theme"`
	Hashtags       []string   `db:"-" json:"hashtags"`
	Media          []string   `db:"-" json:"media"`
	ScheduledTime  *time.Time `db:"scheduled_time" json:"scheduled_time,omitempty"`
	PostedTime     *time.Time `db:"posted_time" json:"posted_time,omitempty"`
	Status         PostStatus `db:"status" json:"status"`
	PlatformPostID *string    `db:"platform_post_id" json:"platform_post_id,omitempty"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// NewDraft builds an unsaved draft record.
func NewDraft(platform Platform, theme string, c Content) *PostRecord {
	return &PostRecord{
		Content:  c.Text,
		Platform: platform,
		Theme:    theme,
		Hashtags: c.Hashtags,
		Media:    c.MediaSuggestions,
		Status:   StatusDraft,
	}
}

// Schedule moves a draft to scheduled for the given time.
func (p *PostRecord) Schedule(at time.Time) error {
	if p.Status != StatusDraft {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, StatusScheduled)
	}
	p.Status = StatusScheduled
	p.ScheduledTime = &at
	return nil
}

// MarkPosted records a successful publish.
func (p *PostRecord) MarkPosted(platformPostID string, at time.Time) error {
	if p.Status != StatusScheduled {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, StatusPosted)
	}
	if platformPostID == "" {
		return errors.New("platform post id is required")
	}
	p.Status = StatusPosted
	p.PostedTime = &at
	p.PlatformPostID = &platformPostID
	p.ErrorMessage = nil
	return nil
}

// MarkFailed records a terminal failure. Drafts may fail directly when they
// never made it to the schedule.
func (p *PostRecord) MarkFailed(reason string) error {
	if p.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, StatusFailed)
	}
	if reason == "" {
		reason = "unknown error"
	}
	p.Status = StatusFailed
	p.ErrorMessage = &reason
	p.PostedTime = nil
	p.PlatformPostID = nil
	return nil
}

// CheckInvariants validates the status/field coupling of a record.
func (p *PostRecord) CheckInvariants() error {
	posted := p.Status == StatusPosted
	if posted != (p.PostedTime != nil) {
		return fmt.Errorf("post %d: posted_time must be set iff status is posted", p.ID)
	}
	if posted != (p.PlatformPostID != nil) {
		return fmt.Errorf("post %d: platform_post_id must be set iff status is posted", p.ID)
	}
	if (p.Status == StatusFailed) != (p.ErrorMessage != nil) {
		return fmt.Errorf("post %d: error_message must be set iff status is failed", p.ID)
	}
	return nil
}

// Content is what the generator hands back for one (platform, theme) pair.
type Content struct {
	Text             string
	Hashtags         []string
	MediaSuggestions []string
	Topic            string
	Fallback         bool
}

// AnalyticsSample is one metric observation for a posted record.
type AnalyticsSample struct {
	ID          int64     `db:"id"`
	PostID      int64     `db:"post_id"`
	Platform    Platform  `db:"platform"`
	MetricName  string    `db:"metric_name"`
	MetricValue int64     `db:"metric_value"`
	CollectedAt time.Time `db:"collected_at"`
}
