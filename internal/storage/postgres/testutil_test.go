package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"edgeai-booster/internal/storage/migrations"
	"edgeai-booster/internal/storage/postgres"
)

// newTestRegistry starts a throwaway Postgres, applies the embedded schema
// and returns a registry over it. The container is removed on test cleanup.
func newTestRegistry(t *testing.T) *postgres.SubscriberRegistry {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("edgeai"),
		tcpostgres.WithUsername("edgeai"),
		tcpostgres.WithPassword("edgeai"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool))
	// Twice: the schema must tolerate restarts.
	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool))

	return postgres.NewSubscriberRegistry(pool)
}

func ptr[T any](v T) *T {
	return &v
}
