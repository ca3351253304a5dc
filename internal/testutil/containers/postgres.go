// Package containers starts throwaway infrastructure for integration tests.
// Callers guard their files with the integration build tag.
package containers

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/transaction-monitor/internal/infrastructure/config"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/database"
)

const postgresImage = "postgres:16-alpine"

// StartPostgres runs an empty PostgreSQL for the duration of t and returns its
// connection URL.
func StartPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pg, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("txmon_test"),
		postgres.WithUsername("txmon"),
		postgres.WithPassword("txmon"),
		testcontainers.WithWaitStrategy(
			// postgres logs readiness twice; the first is the init-script server
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("starting %s: %v", postgresImage, err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pg); err != nil {
			t.Logf("terminating postgres: %v", err)
		}
	})

	url, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	return url
}

// MigratedPool starts PostgreSQL, applies the embedded schema and returns a
// connected pool along with the URL it was built from.
func MigratedPool(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	url := StartPostgres(t)
	logger := zaptest.NewLogger(t)

	if err := database.MigrateUp(url, logger); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	pool, err := database.Connect(context.Background(), config.DatabaseConfig{URL: url, MaxConns: 5}, logger)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool, url
}
