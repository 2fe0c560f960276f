package cache_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traewellingwidget/traewellingwidget/internal/cache"
	"github.com/traewellingwidget/traewellingwidget/internal/storage"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newCache(t *testing.T, httpClient cache.Doer) (*cache.Cache, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore(func() time.Time { return now })
	return cache.New(cache.Config{
		Store:      store,
		HTTPClient: httpClient,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return now },
	}), store
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"https://traewelling.de/api/v1/statistics/daily/2024-03-10", "traewelling.de_api_v1_statistics_daily_2024-03-10"},
		{"http://www.example.com:8080/a/b", "example.com8080_a_b"},
		{"plain-key", "plain-key"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, cache.SanitizeKey(tt.in))
	}
}

func TestCache_ReadFreshAndStale(t *testing.T) {
	ctx := context.Background()
	c, store := newCache(t, nil)

	store.Set("fresh", []byte(`1`), now.Add(-5*time.Minute))
	store.Set("stale", []byte(`2`), now.Add(-11*time.Minute))

	v, err := c.Read(ctx, "fresh", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	_, err = c.Read(ctx, "stale", 10*time.Minute)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	_, err = store.Get(ctx, "stale")
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "stale entry is deleted")

	_, err = c.Read(ctx, "missing", time.Hour)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestCache_WriteSanitizesKey(t *testing.T) {
	ctx := context.Background()
	c, store := newCache(t, nil)

	require.NoError(t, c.Write(ctx, "https://traewelling.de/api/v1/auth/user", []byte(`{}`)))

	_, err := store.Get(ctx, "traewelling.de_api_v1_auth_user")
	assert.NoError(t, err)

	v, err := c.Read(ctx, "https://traewelling.de/api/v1/auth/user", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(v))
}

func TestCache_FetchJSON(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"totalDistance":1000}}`))
	}))
	defer server.Close()

	ctx := context.Background()
	c, _ := newCache(t, server.Client())
	req := cache.Request{
		URL:     server.URL + "/api/v1/statistics/daily/2024-03-01",
		Headers: map[string]string{"Authorization": "Bearer token"},
		MaxAge:  24 * time.Hour,
	}

	body, err := c.FetchJSON(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"totalDistance":1000}}`, string(body))

	body, err = c.FetchJSON(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"totalDistance":1000}}`, string(body))
	assert.Equal(t, int32(1), calls.Load(), "second call is served from cache")
}

func TestCache_FetchJSON_ZeroMaxAgeRevalidates(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c, store := newCache(t, server.Client())
	store.Set(cache.SanitizeKey(server.URL), []byte(`{"old":true}`), now.Add(-time.Second))

	body, err := c.FetchJSON(context.Background(), cache.Request{URL: server.URL})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(body))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_FetchJSON_FallsBackToStaleEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, store := newCache(t, server.Client())
	store.Set(cache.SanitizeKey(server.URL), []byte(`{"stale":true}`), now.Add(-48*time.Hour))

	body, err := c.FetchJSON(context.Background(), cache.Request{URL: server.URL, MaxAge: time.Hour})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stale":true}`, string(body))
}

func TestCache_FetchJSON_ErrorKinds(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c, _ := newCache(t, server.Client())
		_, err := c.FetchJSON(context.Background(), cache.Request{URL: server.URL})

		assert.ErrorIs(t, err, cache.ErrNetwork)
		var statusErr *cache.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		c, _ := newCache(t, http.DefaultClient)
		_, err := c.FetchJSON(context.Background(), cache.Request{URL: url})
		assert.ErrorIs(t, err, cache.ErrNetwork)
	})

	t.Run("malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		}))
		defer server.Close()

		c, store := newCache(t, server.Client())
		_, err := c.FetchJSON(context.Background(), cache.Request{URL: server.URL})
		assert.ErrorIs(t, err, cache.ErrMalformedPayload)
		assert.Equal(t, 0, store.Len(), "malformed responses are not cached")
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	store, err := cache.NewFileStore(ctx, files, "profiles/0/cache")
	require.NoError(t, err)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, store.Put(ctx, "k", []byte(`{"a":1}`)))
	e, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(e.Value))
	assert.WithinDuration(t, time.Now(), e.CreatedAt, 5*time.Second)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
