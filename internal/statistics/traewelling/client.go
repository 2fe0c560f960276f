// Package traewelling is the Traewelling REST API client. Every request carries
// the bearer token of the profile's session and goes through the response cache.
package traewelling

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/cache"
	"github.com/traewellingwidget/traewellingwidget/internal/statistics"
)

const (
	// DefaultBaseURL is the Traewelling API base URL.
	DefaultBaseURL = "https://traewelling.de/api/v1"

	// ProfileURL is the public profile page of a user.
	ProfileURL = "https://traewelling.de/@"
)

// TokenSource yields a valid access token, refreshing it when needed.
// *auth.Session satisfies it.
type TokenSource interface {
	ValidToken(ctx context.Context) (*auth.Token, error)
}

// ClientConfig holds configuration for the Traewelling client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// Tokens provides the bearer token (required).
	Tokens TokenSource

	// Cache serves and stores responses (required).
	Cache *cache.Cache

	Logger zerolog.Logger
}

// Client is a Traewelling API client.
type Client struct {
	baseURL string
	tokens  TokenSource
	cache   *cache.Cache
	logger  zerolog.Logger
}

// NewClient creates a new Traewelling client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  cfg.Tokens,
		cache:   cfg.Cache,
		logger:  cfg.Logger,
	}
}

// UserInfo is the authenticated user.
type UserInfo struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// ProfileURL is the user's public profile page.
func (u *UserInfo) ProfileURL() string {
	return ProfileURL + u.Username
}

type envelope[T any] struct {
	Data *T `json:"data"`
}

// GetDailyStatistics fetches the statistics page of date (YYYY-MM-DD). A
// cached page younger than maxAge is served without a request.
func (c *Client) GetDailyStatistics(ctx context.Context, date string, maxAge time.Duration) (*statistics.Day, error) {
	var resp envelope[statistics.Day]
	if err := c.get(ctx, "/statistics/daily/"+date, maxAge, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetUserInfo fetches the authenticated user.
func (c *Client) GetUserInfo(ctx context.Context, maxAge time.Duration) (*UserInfo, error) {
	var resp envelope[UserInfo]
	if err := c.get(ctx, "/auth/user", maxAge, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: user info without data", cache.ErrMalformedPayload)
	}
	return resp.Data, nil
}

func (c *Client) get(ctx context.Context, path string, maxAge time.Duration, v any) error {
	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return err
	}

	url := c.baseURL + path
	body, err := c.cache.FetchJSON(ctx, cache.Request{
		URL:     url,
		Headers: map[string]string{"Authorization": "Bearer " + token.AccessToken},
		MaxAge:  maxAge,
	})
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", cache.ErrMalformedPayload, path, err)
	}
	return nil
}
