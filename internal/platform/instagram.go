package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social_autoposter/internal/config"
	"social_autoposter/internal/domain"
)

// Instagram publishes through the Instagram Graph API content publishing
// flow: create a media container, then publish it. AccountID is the
// business account id.
type Instagram struct {
	*apiClient
	accountID string
}

func NewInstagram(cfg config.PlatformConfig, timeout time.Duration) *Instagram {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = graphBaseURL
	}
	c := newAPIClient(domain.Instagram, baseURL, timeout)
	c.http.SetAuthToken(cfg.AccessToken).SetError(&graphError{})
	return &Instagram{apiClient: c, accountID: cfg.AccountID}
}

func (i *Instagram) Authenticate(ctx context.Context) (bool, error) {
	if i.accountID == "" {
		return false, nil
	}
	var result graphID
	resp, err := i.http.R().
		SetContext(ctx).
		SetPathParam("account", i.accountID).
		SetQueryParam("fields", "id,username").
		SetResult(&result).
		Get("/{account}")
	ok, err := i.authenticate(resp, err)
	return ok && result.ID != "", err
}

// Publish needs at least one image URL; Instagram has no text-only posts.
func (i *Instagram) Publish(ctx context.Context, text string, hashtags, media []string) (string, error) {
	urls := MediaURLs(media)
	if len(urls) == 0 {
		return "", fmt.Errorf("instagram publish: %w", ErrMediaRequired)
	}

	var container graphID
	resp, err := i.http.R().
		SetContext(ctx).
		SetPathParam("account", i.accountID).
		SetBody(map[string]string{
			"image_url": urls[0],
			"caption":   Format(domain.Instagram, text, hashtags),
		}).
		SetResult(&container).
		Post("/{account}/media")
	if err := i.check(resp, err, "create media container"); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", errors.New("instagram publish: missing container id")
	}

	var published graphID
	resp, err = i.http.R().
		SetContext(ctx).
		SetPathParam("account", i.accountID).
		SetBody(map[string]string{"creation_id": container.ID}).
		SetResult(&published).
		Post("/{account}/media_publish")
	if err := i.check(resp, err, "publish"); err != nil {
		return "", err
	}
	if published.ID == "" {
		return "", errors.New("instagram publish: missing media id")
	}
	return published.ID, nil
}

func (i *Instagram) Metrics(ctx context.Context, postID string) (map[string]int64, error) {
	var result struct {
		LikeCount     int64 `json:"like_count"`
		CommentsCount int64 `json:"comments_count"`
	}
	resp, err := i.http.R().
		SetContext(ctx).
		SetPathParam("id", postID).
		SetQueryParam("fields", "like_count,comments_count").
		SetResult(&result).
		Get("/{id}")
	if err := i.check(resp, err, "metrics"); err != nil {
		return nil, err
	}

	return map[string]int64{
		"likes":    result.LikeCount,
		"comments": result.CommentsCount,
	}, nil
}

// Delete is not offered by the Instagram Graph API.
func (i *Instagram) Delete(context.Context, string) error {
	return ErrNotImplemented
}

func (i *Instagram) TrendingTopics(context.Context) ([]string, error) {
	return nil, ErrNotImplemented
}
