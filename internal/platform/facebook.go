package platform

import (
	"context"
	"errors"
	"time"

	"social_autoposter/internal/config"
	"social_autoposter/internal/domain"
)

const graphBaseURL = "https://graph.facebook.com/v19.0"

// Facebook publishes to a page feed through the Graph API. AccountID is the
// page id and AccessToken a page token.
type Facebook struct {
	*apiClient
	pageID string
}

func NewFacebook(cfg config.PlatformConfig, timeout time.Duration) *Facebook {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = graphBaseURL
	}
	c := newAPIClient(domain.Facebook, baseURL, timeout)
	c.http.SetAuthToken(cfg.AccessToken).SetError(&graphError{})
	return &Facebook{apiClient: c, pageID: cfg.AccountID}
}

type graphID struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

func (f *Facebook) Authenticate(ctx context.Context) (bool, error) {
	if f.pageID == "" {
		return false, nil
	}
	var result graphID
	resp, err := f.http.R().
		SetContext(ctx).
		SetQueryParam("fields", "id,name").
		SetResult(&result).
		Get("/me")
	ok, err := f.authenticate(resp, err)
	return ok && result.ID != "", err
}

// Publish posts to the page feed, or as a photo post when a media URL is
// given.
func (f *Facebook) Publish(ctx context.Context, text string, hashtags, media []string) (string, error) {
	message := Format(domain.Facebook, text, hashtags)

	var result graphID
	req := f.http.R().
		SetContext(ctx).
		SetPathParam("page", f.pageID).
		SetResult(&result)

	path := "/{page}/feed"
	if urls := MediaURLs(media); len(urls) > 0 {
		path = "/{page}/photos"
		req.SetBody(map[string]string{"url": urls[0], "caption": message})
	} else {
		req.SetBody(map[string]string{"message": message})
	}

	resp, err := req.Post(path)
	if err := f.check(resp, err, "publish"); err != nil {
		return "", err
	}

	// Photo uploads answer with the photo id and the feed post id.
	if result.PostID != "" {
		return result.PostID, nil
	}
	if result.ID == "" {
		return "", errors.New("facebook publish: missing post id")
	}
	return result.ID, nil
}

func (f *Facebook) Metrics(ctx context.Context, postID string) (map[string]int64, error) {
	var result struct {
		Likes struct {
			Summary struct {
				TotalCount int64 `json:"total_count"`
			} `json:"summary"`
		} `json:"likes"`
		Comments struct {
			Summary struct {
				TotalCount int64 `json:"total_count"`
			} `json:"summary"`
		} `json:"comments"`
		Shares struct {
			Count int64 `json:"count"`
		} `json:"shares"`
	}
	resp, err := f.http.R().
		SetContext(ctx).
		SetPathParam("id", postID).
		SetQueryParam("fields", "likes.summary(true),comments.summary(true),shares").
		SetResult(&result).
		Get("/{id}")
	if err := f.check(resp, err, "metrics"); err != nil {
		return nil, err
	}

	return map[string]int64{
		"likes":    result.Likes.Summary.TotalCount,
		"comments": result.Comments.Summary.TotalCount,
		"shares":   result.Shares.Count,
	}, nil
}

func (f *Facebook) Delete(ctx context.Context, postID string) error {
	resp, err := f.http.R().
		SetContext(ctx).
		SetPathParam("id", postID).
		Delete("/{id}")
	return f.check(resp, err, "delete")
}

func (f *Facebook) TrendingTopics(context.Context) ([]string, error) {
	return nil, ErrNotImplemented
}
