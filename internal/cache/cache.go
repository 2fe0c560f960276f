// Package cache is the per-profile response cache. Entries have a freshness
// window chosen by the reader; stale entries are deleted on read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Fetch error kinds.
var (
	// ErrCacheMiss is returned when no fresh entry exists.
	ErrCacheMiss = errors.New("cache miss")

	// ErrNetwork is returned when a request failed and no cached value could stand in.
	ErrNetwork = errors.New("network failure")

	// ErrMalformedPayload is returned when a response is not valid JSON.
	ErrMalformedPayload = errors.New("malformed payload")
)

const meterName = "github.com/traewellingwidget/traewellingwidget/internal/cache"

// Doer executes HTTP requests. *resilience.Client and *http.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// Config holds configuration for the cache.
type Config struct {
	Store      Store
	HTTPClient Doer
	Logger     zerolog.Logger

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Cache reads and writes entries and fetches JSON through them.
type Cache struct {
	store      Store
	httpClient Doer
	logger     zerolog.Logger
	now        func() time.Time

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// New creates a new cache.
func New(cfg Config) *Cache {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	meter := otel.Meter(meterName)
	// Instruments are only nil for invalid names, count skips them.
	hits, _ := meter.Int64Counter("cache.hits", metric.WithDescription("Fresh cache entries served"))
	misses, _ := meter.Int64Counter("cache.misses", metric.WithDescription("Missing or stale cache entries"))

	return &Cache{
		store:      cfg.Store,
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
		hits:       hits,
		misses:     misses,
	}
}

// SanitizeKey turns a URL into a file-safe key: the scheme and "www." are
// stripped, "/" becomes "_" and ":" is dropped.
func SanitizeKey(key string) string {
	key = strings.Replace(key, "https://", "", 1)
	key = strings.Replace(key, "http://", "", 1)
	key = strings.Replace(key, "www.", "", 1)
	key = strings.ReplaceAll(key, "/", "_")
	return strings.ReplaceAll(key, ":", "")
}

func (c *Cache) fresh(e *Entry, maxAge time.Duration) bool {
	return maxAge > 0 && c.now().Sub(e.CreatedAt) <= maxAge
}

// Read returns the value stored under key if it is at most maxAge old.
// Stale entries are deleted and reported as ErrCacheMiss.
func (c *Cache) Read(ctx context.Context, key string, maxAge time.Duration) ([]byte, error) {
	key = SanitizeKey(key)

	e, err := c.store.Get(ctx, key)
	if err != nil {
		c.count(ctx, c.misses)
		return nil, err
	}

	if !c.fresh(e, maxAge) {
		c.count(ctx, c.misses)
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("cache_key", key).Msg("failed to delete stale cache entry")
		}
		return nil, ErrCacheMiss
	}

	c.count(ctx, c.hits)
	return e.Value, nil
}

// Write stores value under key.
func (c *Cache) Write(ctx context.Context, key string, value []byte) error {
	key = SanitizeKey(key)
	if err := c.store.Put(ctx, key, value); err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

// Request describes a cached JSON fetch.
type Request struct {
	URL     string
	Headers map[string]string

	// CacheKey defaults to URL.
	CacheKey string

	// MaxAge is the freshness window of a cached response. Zero always revalidates.
	MaxAge time.Duration
}

// FetchJSON returns the cached response of req when it is fresh enough,
// otherwise it fetches and caches the response. When the fetch fails and a
// stale entry existed, the stale value is returned instead of the error.
func (c *Cache) FetchJSON(ctx context.Context, req Request) (json.RawMessage, error) {
	key := req.CacheKey
	if key == "" {
		key = req.URL
	}
	key = SanitizeKey(key)

	var stale []byte
	e, err := c.store.Get(ctx, key)
	switch {
	case err == nil && c.fresh(e, req.MaxAge) && json.Valid(e.Value):
		c.count(ctx, c.hits)
		c.logger.Debug().Str("cache_key", key).Msg("serving from cache")
		return e.Value, nil
	case err == nil:
		stale = e.Value
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("cache_key", key).Msg("failed to delete stale cache entry")
		}
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("cache read failed")
	}
	c.count(ctx, c.misses)

	body, err := c.fetch(ctx, req)
	if err != nil {
		if stale != nil && json.Valid(stale) {
			c.logger.Warn().Err(err).Str("url", req.URL).Msg("fetch failed, serving stale cache entry")
			return stale, nil
		}
		return nil, err
	}

	if err := c.store.Put(ctx, key, body); err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("failed to cache response")
	}
	return body, nil
}

func (c *Cache) fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug().Str("url", req.URL).Msg("fetching")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, &StatusError{StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrNetwork, err)
	}
	if !json.Valid(body) {
		return nil, ErrMalformedPayload
	}
	return body, nil
}

func (c *Cache) count(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}
