// Package testutil starts the backing services integration tests run against.
package testutil

import (
	"os/exec"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/traewellingwidget/traewellingwidget/internal/database"
)

// StartPostgres runs a migrated Postgres in docker for the duration of the
// test. The test is skipped with -short or when docker is not available.
func StartPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	if out, err := exec.Command("docker", "info", "--format", "{{.ServerVersion}}").CombinedOutput(); err != nil {
		t.Skipf("docker not available: %s", out)
	}

	container, err := postgres.Run(t.Context(),
		"postgres:17-alpine",
		postgres.WithDatabase("traewelling-widget-test"),
		postgres.WithUsername("traewelling"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "starting postgres container")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err)

	pool, err := database.ConnectAndMigrate(t.Context(), database.Config{DSN: dsn})
	require.NoError(t, err, "connecting and migrating")
	t.Cleanup(pool.Close)

	return pool
}
