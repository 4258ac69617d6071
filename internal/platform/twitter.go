package platform

import (
	"context"
	"errors"
	"time"

	"social_autoposter/internal/config"
	"social_autoposter/internal/domain"
)

const twitterBaseURL = "https://api.twitter.com"

// Twitter talks to the X/Twitter v2 API with an OAuth2 user token.
type Twitter struct {
	*apiClient
}

func NewTwitter(cfg config.PlatformConfig, timeout time.Duration) *Twitter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twitterBaseURL
	}
	c := newAPIClient(domain.Twitter, baseURL, timeout)
	c.http.SetAuthToken(cfg.AccessToken).SetError(&twitterError{})
	return &Twitter{apiClient: c}
}

type twitterData[T any] struct {
	Data T `json:"data"`
}

func (t *Twitter) Authenticate(ctx context.Context) (bool, error) {
	var result twitterData[struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}]
	resp, err := t.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/2/users/me")
	ok, err := t.authenticate(resp, err)
	return ok && result.Data.ID != "", err
}

func (t *Twitter) Publish(ctx context.Context, text string, hashtags, _ []string) (string, error) {
	var result twitterData[struct {
		ID string `json:"id"`
	}]
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": Format(domain.Twitter, text, hashtags)}).
		SetResult(&result).
		Post("/2/tweets")
	if err := t.check(resp, err, "publish"); err != nil {
		return "", err
	}
	if result.Data.ID == "" {
		return "", errors.New("twitter publish: missing tweet id")
	}
	return result.Data.ID, nil
}

func (t *Twitter) Metrics(ctx context.Context, postID string) (map[string]int64, error) {
	var result twitterData[struct {
		PublicMetrics struct {
			Likes       int64 `json:"like_count"`
			Retweets    int64 `json:"retweet_count"`
			Replies     int64 `json:"reply_count"`
			Quotes      int64 `json:"quote_count"`
			Impressions int64 `json:"impression_count"`
		} `json:"public_metrics"`
	}]
	resp, err := t.http.R().
		SetContext(ctx).
		SetPathParam("id", postID).
		SetQueryParam("tweet.fields", "public_metrics").
		SetResult(&result).
		Get("/2/tweets/{id}")
	if err := t.check(resp, err, "metrics"); err != nil {
		return nil, err
	}

	m := result.Data.PublicMetrics
	return map[string]int64{
		"likes":       m.Likes,
		"retweets":    m.Retweets,
		"replies":     m.Replies,
		"quotes":      m.Quotes,
		"impressions": m.Impressions,
	}, nil
}

func (t *Twitter) Delete(ctx context.Context, postID string) error {
	resp, err := t.http.R().
		SetContext(ctx).
		SetPathParam("id", postID).
		Delete("/2/tweets/{id}")
	return t.check(resp, err, "delete")
}

// TrendingTopics returns up to ten worldwide trend names.
func (t *Twitter) TrendingTopics(ctx context.Context) ([]string, error) {
	var result []struct {
		Trends []struct {
			Name string `json:"name"`
		} `json:"trends"`
	}
	resp, err := t.http.R().
		SetContext(ctx).
		SetQueryParam("id", "1").
		SetResult(&result).
		Get("/1.1/trends/place.json")
	if err := t.check(resp, err, "trending topics"); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	var topics []string
	for _, trend := range result[0].Trends {
		topics = append(topics, trend.Name)
		if len(topics) == 10 {
			break
		}
	}
	return topics, nil
}
