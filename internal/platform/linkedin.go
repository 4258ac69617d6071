package platform

import (
	"context"
	"errors"
	"time"

	"social_autoposter/internal/config"
	"social_autoposter/internal/domain"
)

const (
	linkedInBaseURL = "https://api.linkedin.com"
	linkedInVersion = "202401"
)

// LinkedIn posts through the versioned Posts API. AccountID is the author
// URN, e.g. urn:li:person:abc or urn:li:organization:123.
type LinkedIn struct {
	*apiClient
	author string
}

func NewLinkedIn(cfg config.PlatformConfig, timeout time.Duration) *LinkedIn {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = linkedInBaseURL
	}
	c := newAPIClient(domain.LinkedIn, baseURL, timeout)
	c.http.
		SetAuthToken(cfg.AccessToken).
		SetHeader("LinkedIn-Version", linkedInVersion).
		SetHeader("X-Restli-Protocol-Version", "2.0.0")
	return &LinkedIn{apiClient: c, author: cfg.AccountID}
}

func (l *LinkedIn) Authenticate(ctx context.Context) (bool, error) {
	if l.author == "" {
		return false, nil
	}
	var result struct {
		Sub string `json:"sub"`
	}
	resp, err := l.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/v2/userinfo")
	ok, err := l.authenticate(resp, err)
	return ok && result.Sub != "", err
}

type linkedInPost struct {
	Author       string `json:"author"`
	Commentary   string `json:"commentary"`
	Visibility   string `json:"visibility"`
	Distribution struct {
		FeedDistribution string `json:"feedDistribution"`
	} `json:"distribution"`
	LifecycleState string `json:"lifecycleState"`
}

// Publish creates a text post. The new post URN comes back in the
// x-restli-id header.
func (l *LinkedIn) Publish(ctx context.Context, text string, hashtags, _ []string) (string, error) {
	body := linkedInPost{
		Author:         l.author,
		Commentary:     Format(domain.LinkedIn, text, hashtags),
		Visibility:     "PUBLIC",
		LifecycleState: "PUBLISHED",
	}
	body.Distribution.FeedDistribution = "MAIN_FEED"

	resp, err := l.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/rest/posts")
	if err := l.check(resp, err, "publish"); err != nil {
		return "", err
	}

	id := resp.Header().Get("x-restli-id")
	if id == "" {
		return "", errors.New("linkedin publish: missing post urn")
	}
	return id, nil
}

// Metrics needs the Community Management API, which this client does not
// use.
func (l *LinkedIn) Metrics(context.Context, string) (map[string]int64, error) {
	return nil, ErrNotImplemented
}

func (l *LinkedIn) Delete(ctx context.Context, postID string) error {
	resp, err := l.http.R().
		SetContext(ctx).
		SetPathParam("urn", postID).
		Delete("/rest/posts/{urn}")
	return l.check(resp, err, "delete")
}

func (l *LinkedIn) TrendingTopics(context.Context) ([]string, error) {
	return nil, ErrNotImplemented
}
