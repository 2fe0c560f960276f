package traewelling_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/cache"
	"github.com/traewellingwidget/traewellingwidget/internal/statistics/traewelling"
)

type staticTokens struct {
	token *auth.Token
	err   error
}

func (s staticTokens) ValidToken(context.Context) (*auth.Token, error) {
	return s.token, s.err
}

func newClient(t *testing.T, server *httptest.Server, tokens traewelling.TokenSource) *traewelling.Client {
	t.Helper()
	c := cache.New(cache.Config{
		Store:      cache.NewMemoryStore(nil),
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
	return traewelling.NewClient(traewelling.ClientConfig{
		BaseURL: server.URL + "/api/v1/",
		Tokens:  tokens,
		Cache:   c,
		Logger:  zerolog.Nop(),
	})
}

func TestClient_GetDailyStatistics(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/v1/statistics/daily/2024-03-10", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"totalDistance":10000,"totalDuration":10,"statuses":[{"id":1,"business":0,"train":{"distance":10000,"duration":10}}]}}`))
	}))
	defer server.Close()

	client := newClient(t, server, staticTokens{token: &auth.Token{AccessToken: "access"}})

	day, err := client.GetDailyStatistics(context.Background(), "2024-03-10", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.Equal(t, 10000.0, day.TotalDistance)
	require.Len(t, day.Statuses, 1)
	assert.Equal(t, int64(1), day.Statuses[0].ID)

	_, err = client.GetDailyStatistics(context.Background(), "2024-03-10", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "served from cache")
}

func TestClient_GetDailyStatistics_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"nothing here"}`))
	}))
	defer server.Close()

	day, err := newClient(t, server, staticTokens{token: &auth.Token{AccessToken: "a"}}).
		GetDailyStatistics(context.Background(), "2024-03-10", 0)
	require.NoError(t, err)
	assert.Nil(t, day)
}

func TestClient_GetUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/user", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"username":"gertrud123","displayName":"Gertrud"}}`))
	}))
	defer server.Close()

	info, err := newClient(t, server, staticTokens{token: &auth.Token{AccessToken: "a"}}).
		GetUserInfo(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "Gertrud", info.DisplayName)
	assert.Equal(t, "https://traewelling.de/@gertrud123", info.ProfileURL())
}

func TestClient_Errors(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Error("no request expected without a token")
		}))
		defer server.Close()

		_, err := newClient(t, server, staticTokens{err: auth.ErrAuthRequired}).
			GetDailyStatistics(context.Background(), "2024-03-10", 0)
		assert.ErrorIs(t, err, auth.ErrAuthRequired)
	})

	t.Run("unauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := newClient(t, server, staticTokens{token: &auth.Token{AccessToken: "a"}}).
			GetDailyStatistics(context.Background(), "2024-03-10", 0)
		assert.ErrorIs(t, err, cache.ErrNetwork)

		var statusErr *cache.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	})

	t.Run("unexpected shape", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"statuses":"nope"}}`))
		}))
		defer server.Close()

		_, err := newClient(t, server, staticTokens{token: &auth.Token{AccessToken: "a"}}).
			GetDailyStatistics(context.Background(), "2024-03-10", 0)
		assert.ErrorIs(t, err, cache.ErrMalformedPayload)
	})
}
