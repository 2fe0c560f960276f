package widget_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/cache"
	"github.com/traewellingwidget/traewellingwidget/internal/widget"
)

// traewellingAPI serves one 10 km, 10 minute personal trip per day.
func traewellingAPI(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/api/v1/auth/user":
			_, _ = w.Write([]byte(`{"data":{"username":"gertrud123","displayName":"Gertrud"}}`))
		case strings.HasPrefix(r.URL.Path, "/api/v1/statistics/daily/"):
			date := strings.TrimPrefix(r.URL.Path, "/api/v1/statistics/daily/")
			_, _ = fmt.Fprintf(w, `{"data":{"totalDistance":10000,"totalDuration":10,"statuses":[{
				"id": 1, "business": 0,
				"train": {
					"category": "suburban", "lineName": "S1", "distance": 10000, "duration": 10,
					"origin": {"name": "Altona", "evaIdentifier": 8002553, "departure": "%[1]sT08:00:00+01:00", "departurePlanned": "%[1]sT08:00:00+01:00"},
					"destination": {"name": "Dammtor", "evaIdentifier": 8002548, "arrivalPlanned": "%[1]sT08:10:00+01:00", "arrivalReal": "%[1]sT08:12:00+01:00"},
					"overriddenArrival": null
				}
			}]}}`, date)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFactory_RendersAuthenticatedProfile(t *testing.T) {
	api := traewellingAPI(t)
	ctx := context.Background()

	oauth, err := auth.NewOAuthClient(auth.ClientConfig{Server: api.URL, ClientID: "96"})
	require.NoError(t, err)

	tokens := auth.NewInMemoryTokenRepository()
	expires := now.Add(time.Hour)
	require.NoError(t, tokens.Save(ctx, "0", &auth.Token{AccessToken: "access", RefreshToken: "r", ExpiresAt: &expires}))

	manager := auth.NewManager(auth.ManagerConfig{
		OAuth:     oauth,
		Tokens:    tokens,
		Verifiers: auth.NewInMemoryCodeVerifierRepository(),
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return now },
	})

	stores := map[string]*cache.MemoryStore{}
	factory := widget.NewFactory(widget.FactoryConfig{
		Manager: manager,
		CacheStore: func(_ context.Context, profile string) (cache.Store, error) {
			stores[profile] = cache.NewMemoryStore(func() time.Time { return now })
			return stores[profile], nil
		},
		HTTPClient: api.Client(),
		BaseURL:    api.URL + "/api/v1",
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return now },
	})

	p, err := factory.Profile(ctx, "0")
	require.NoError(t, err)

	params := widget.DefaultParams()
	require.NoError(t, params.ApplyParameter(`{"schemes":{"large":[[[["distance","purposePersonal","delay","categoryUrban"]]]]}}`))

	w := p.Widget.Render(ctx, params)

	assert.Equal(t, "https://traewelling.de/@gertrud123", w.URL)
	assert.Equal(t, []string{
		"140 km",
		"total distance",
		"👤 100% personal",
		"⏳ 0h 28min delay",
		"🚃 100% urban",
	}, textsOf(w))
	assert.Equal(t, 15, stores["0"].Len(), "user info and 14 days are cached")
}

func TestFactory_UnauthenticatedProfile(t *testing.T) {
	api := traewellingAPI(t)

	oauth, err := auth.NewOAuthClient(auth.ClientConfig{Server: api.URL, ClientID: "96"})
	require.NoError(t, err)

	factory := widget.NewFactory(widget.FactoryConfig{
		Manager: auth.NewManager(auth.ManagerConfig{
			OAuth:     oauth,
			Tokens:    auth.NewInMemoryTokenRepository(),
			Verifiers: auth.NewInMemoryCodeVerifierRepository(),
			Logger:    zerolog.Nop(),
		}),
		CacheStore: func(context.Context, string) (cache.Store, error) { return cache.NewMemoryStore(nil), nil },
		HTTPClient: api.Client(),
		BaseURL:    api.URL + "/api/v1",
		Logger:     zerolog.Nop(),
	})

	p, err := factory.Profile(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "3", p.Name)

	w := p.Widget.Render(context.Background(), widget.DefaultParams())
	assert.Equal(t, []string{"🚆 Traewelling", widget.MsgUnauthenticated}, textsOf(w))
}
