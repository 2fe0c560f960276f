package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traewellingwidget/traewellingwidget/internal/provider/resilience"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func registered(t *testing.T, c *clock, names ...string) *resilience.Registry {
	t.Helper()
	registry := resilience.NewRegistry(resilience.WithClock(c.now))
	for _, name := range names {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		resilience.NewClient(cfg)
	}
	return registry
}

func TestRegistry_NewUpstreamIsUp(t *testing.T) {
	registry := registered(t, &clock{}, "traewelling-api")

	health, ok := registry.Health("traewelling-api")
	require.True(t, ok)
	assert.Equal(t, resilience.StatusUp, health.Status)
	assert.Equal(t, gobreaker.StateClosed, health.Breaker)
	assert.True(t, health.LastSuccessAt.IsZero())
	assert.True(t, health.LastFailureAt.IsZero())

	_, ok = registry.Health("nominatim")
	assert.False(t, ok)
}

func TestRegistry_Outcomes(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	registry := registered(t, c, "oauth")

	registry.RecordFailure("oauth", errors.New("connection reset"))
	health, _ := registry.Health("oauth")
	assert.Equal(t, resilience.StatusDegraded, health.Status)
	assert.Equal(t, c.t, health.LastFailureAt)
	assert.Equal(t, "connection reset", health.LastError)

	c.t = c.t.Add(time.Minute)
	registry.RecordSuccess("oauth")
	health, _ = registry.Health("oauth")
	assert.Equal(t, resilience.StatusUp, health.Status)
	assert.Equal(t, c.t, health.LastSuccessAt)
	assert.Equal(t, "connection reset", health.LastError, "last error is kept for the status page")

	registry.RecordSuccess("unknown")
	registry.RecordFailure("unknown", assert.AnError)
	assert.Equal(t, []string{"oauth"}, registry.Names())
}

func TestRegistry_SnapshotAndOverall(t *testing.T) {
	c := &clock{t: time.Now()}
	registry := registered(t, c, "traewelling-api", "oauth")

	assert.Equal(t, []string{"oauth", "traewelling-api"}, registry.Names())
	assert.Equal(t, resilience.StatusUp, registry.Overall())

	registry.RecordFailure("traewelling-api", assert.AnError)
	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, resilience.StatusUp, snapshot[0].Status)
	assert.Equal(t, resilience.StatusDegraded, snapshot[1].Status)
	assert.Equal(t, resilience.StatusDegraded, registry.Overall())
}

func TestRegistry_Empty(t *testing.T) {
	registry := resilience.NewRegistry()
	assert.Empty(t, registry.Snapshot())
	assert.Empty(t, registry.Names())
	assert.Equal(t, resilience.StatusUp, registry.Overall())
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	registry := registered(t, &clock{}, "oauth")
	registry.RecordFailure("oauth", assert.AnError)

	cfg := resilience.DefaultClientConfig("oauth")
	cfg.Registry = registry
	resilience.NewClient(cfg)

	health, ok := registry.Health("oauth")
	require.True(t, ok)
	assert.Equal(t, resilience.StatusUp, health.Status)
	assert.Empty(t, health.LastError)
}
