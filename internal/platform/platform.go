package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"social_autoposter/internal/domain"
)

var (
	// ErrNotImplemented is returned for capabilities a platform client does
	// not support yet.
	ErrNotImplemented = errors.New("not implemented")
	// ErrNotAuthenticated means the credentials were rejected or missing.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMediaRequired    = errors.New("media url required")
)

// Publisher is the capability surface every platform client provides.
type Publisher interface {
	Platform() domain.Platform
	Authenticate(ctx context.Context) (bool, error)
	Publish(ctx context.Context, text string, hashtags, media []string) (string, error)
	Metrics(ctx context.Context, postID string) (map[string]int64, error)
	Delete(ctx context.Context, postID string) error
	TrendingTopics(ctx context.Context) ([]string, error)
}

// APIError is a non-2xx answer from a platform API.
type APIError struct {
	Platform   domain.Platform
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.Platform, e.StatusCode, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Retryable reports whether a publish error is worth another attempt. Auth
// failures, unsupported capabilities and 4xx rejections are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotImplemented) || errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrMediaRequired) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

// apiClient is the shared resty plumbing behind the concrete publishers.
type apiClient struct {
	platform domain.Platform
	http     *resty.Client
}

func newAPIClient(platform domain.Platform, baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		platform: platform,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *apiClient) Platform() domain.Platform { return c.platform }

// check folds transport and HTTP status failures into one error.
func (c *apiClient) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s %s: %w", c.platform, op, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{
		Platform:   c.platform,
		StatusCode: resp.StatusCode(),
		Message:    errorMessage(resp),
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return fmt.Errorf("%s %s: %w: %w", c.platform, op, ErrNotAuthenticated, apiErr)
	}
	return fmt.Errorf("%s %s: %w", c.platform, op, apiErr)
}

// authenticate maps an identity probe to the (ok, err) contract: rejected
// credentials are reported as false without an error.
func (c *apiClient) authenticate(resp *resty.Response, err error) (bool, error) {
	if err := c.check(resp, err, "authenticate"); err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type twitterError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func errorMessage(resp *resty.Response) string {
	switch e := resp.Error().(type) {
	case *graphError:
		if e.Error.Message != "" {
			return e.Error.Message
		}
	case *twitterError:
		if e.Detail != "" {
			return e.Detail
		}
		if e.Title != "" {
			return e.Title
		}
	}

	body := resp.String()
	if len(body) > 256 {
		body = body[:256]
	}
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return body
}
