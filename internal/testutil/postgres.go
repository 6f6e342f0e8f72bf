//go:build integration

package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgOnce sync.Once
	pgURL  string
	pgErr  error
)

// PostgresURL returns DATABASE_URL when set, otherwise the URL of a PostgreSQL
// container shared by every test in the binary. Tests are skipped in -short mode.
func PostgresURL(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL test in short mode")
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	pgOnce.Do(func() {
		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("costtrack_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			pgErr = err
			return
		}
		pgURL, pgErr = container.ConnectionString(ctx, "sslmode=disable")
	})

	if pgErr != nil {
		t.Skipf("PostgreSQL unavailable: %v", pgErr)
	}
	return pgURL
}
