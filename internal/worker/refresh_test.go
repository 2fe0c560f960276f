package worker_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/cache"
	"github.com/traewellingwidget/traewellingwidget/internal/widget"
	"github.com/traewellingwidget/traewellingwidget/internal/worker"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	factory  *widget.Factory
	mu       sync.Mutex
	stores   map[string]*cache.MemoryStore
	requests atomic.Int64
}

// newFixture wires profile "0" with a valid token, profile "1" without any
// and profile "2" with a token the API rejects.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{stores: map[string]*cache.MemoryStore{}}

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/api/v1/auth/user":
			_, _ = w.Write([]byte(`{"data":{"username":"gertrud123","displayName":"Gertrud"}}`))
		case strings.HasPrefix(r.URL.Path, "/api/v1/statistics/daily/"):
			date := strings.TrimPrefix(r.URL.Path, "/api/v1/statistics/daily/")
			_, _ = fmt.Fprintf(w, `{"data":{"totalDistance":3000,"totalDuration":5,"statuses":[{
				"id": 1, "business": 2,
				"train": {
					"category": "tram", "lineName": "M10", "distance": 3000, "duration": 5,
					"origin": {"name": "Warschauer Str.", "evaIdentifier": 1, "departure": "%[1]sT09:00:00+01:00", "departurePlanned": "%[1]sT09:00:00+01:00"},
					"destination": {"name": "Hauptbahnhof", "evaIdentifier": 2, "arrivalPlanned": "%[1]sT09:05:00+01:00", "arrivalReal": "%[1]sT09:05:00+01:00"}
				}
			}]}}`, date)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(api.Close)

	oauth, err := auth.NewOAuthClient(auth.ClientConfig{Server: api.URL, ClientID: "96"})
	require.NoError(t, err)

	ctx := context.Background()
	tokens := auth.NewInMemoryTokenRepository()
	expires := now.Add(time.Hour)
	require.NoError(t, tokens.Save(ctx, "0", &auth.Token{AccessToken: "access", RefreshToken: "r", ExpiresAt: &expires}))
	require.NoError(t, tokens.Save(ctx, "2", &auth.Token{AccessToken: "revoked", RefreshToken: "r", ExpiresAt: &expires}))

	clock := func() time.Time { return now }
	f.factory = widget.NewFactory(widget.FactoryConfig{
		Manager: auth.NewManager(auth.ManagerConfig{
			OAuth:     oauth,
			Tokens:    tokens,
			Verifiers: auth.NewInMemoryCodeVerifierRepository(),
			Logger:    zerolog.Nop(),
			Now:       clock,
		}),
		CacheStore: func(_ context.Context, profile string) (cache.Store, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.stores[profile] == nil {
				f.stores[profile] = cache.NewMemoryStore(clock)
			}
			return f.stores[profile], nil
		},
		HTTPClient: api.Client(),
		BaseURL:    api.URL + "/api/v1",
		Logger:     zerolog.Nop(),
		Now:        clock,
	})
	return f
}

func (f *fixture) job(cfg worker.RefreshConfig) *worker.RefreshJob {
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:   cfg,
		Profiles: f.factory,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return now },
	})
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, []string{widget.DefaultProfile}, cfg.Profiles)
	assert.Equal(t, widget.DefaultDays, cfg.Days)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Interval)
}

func TestNewRefreshJob_Defaults(t *testing.T) {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Profiles: []string{"1", "0", "1", ""}, Days: 3},
	})

	cfg := job.Config()
	assert.Equal(t, []string{"1", "0"}, cfg.Profiles)
	assert.Equal(t, 3, cfg.Days)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 30*time.Minute, cfg.Interval)
}

func TestRefreshJob_Run(t *testing.T) {
	f := newFixture(t)
	job := f.job(worker.RefreshConfig{Profiles: []string{"0", "1", "2"}, Days: 4, Concurrency: 3})

	result := job.Run(context.Background())

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Refreshed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Positive(t, result.Duration)

	require.Len(t, result.Profiles, 3)
	assert.Equal(t, worker.ProfileResult{Profile: "0", Outcome: worker.OutcomeRefreshed, Days: 4, Trips: 4}, result.Profiles[0])
	assert.Equal(t, worker.ProfileResult{Profile: "1", Outcome: worker.OutcomeSkipped, Reason: "UNAUTHENTICATED"}, result.Profiles[1])
	assert.Equal(t, worker.OutcomeFailed, result.Profiles[2].Outcome)
	assert.Contains(t, result.Profiles[2].Error, "user info")

	// User info plus four days.
	assert.Equal(t, 5, f.stores["0"].Len())
}

func TestRefreshJob_ServesFromCache(t *testing.T) {
	f := newFixture(t)
	job := f.job(worker.RefreshConfig{Days: 7})

	job.Run(context.Background())
	first := f.requests.Load()
	assert.Equal(t, int64(8), first)

	// User info and the three most recent days always revalidate.
	job.Run(context.Background())
	assert.Equal(t, int64(4), f.requests.Load()-first)
}

func TestRefreshJob_RunProfiles(t *testing.T) {
	f := newFixture(t)
	job := f.job(worker.RefreshConfig{Days: 14})

	result := job.RunProfiles(context.Background(), []string{"0", "0"}, 2)

	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Profiles, 1)
	assert.Equal(t, 2, result.Profiles[0].Days)
}

type failingProfiles struct{}

func (failingProfiles) Profile(context.Context, string) (*widget.Profile, error) {
	return nil, errors.New("disk full")
}

func TestRefreshJob_ProfileError(t *testing.T) {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{Profiles: failingProfiles{}, Logger: zerolog.Nop()})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "disk full", result.Profiles[0].Error)
}

func TestRefreshJob_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:   worker.RefreshConfig{Profiles: []string{"0", "1"}},
		Profiles: failingProfiles{},
		Logger:   zerolog.Nop(),
	})

	result := job.Run(ctx)
	assert.Equal(t, 2, result.Failed)
	for _, pr := range result.Profiles {
		assert.Equal(t, context.Canceled.Error(), pr.Error)
	}
}

func TestRefreshJob_Metrics(t *testing.T) {
	f := newFixture(t)
	job := f.job(worker.RefreshConfig{Profiles: []string{"0", "1"}, Days: 1})

	job.Run(context.Background())
	job.Run(context.Background())

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(2), m.Refreshed)
	assert.Equal(t, int64(2), m.Skipped)
	assert.Zero(t, m.Failed)
	assert.False(t, m.LastRunAt.IsZero())

	snapshot := job.MetricsSnapshot()
	assert.Equal(t, int64(2), snapshot["total_runs"])
	assert.Equal(t, int64(2), snapshot["skipped"])
}

func TestRefreshJob_Schedule(t *testing.T) {
	f := newFixture(t)
	job := f.job(worker.RefreshConfig{Days: 1, Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Schedule(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return job.GetMetrics().TotalRuns >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("schedule did not stop")
	}
}
