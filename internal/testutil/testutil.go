// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/costtrack/costtrack/internal/migrate"
	"github.com/costtrack/costtrack/internal/model"
	"github.com/costtrack/costtrack/internal/repository"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// NewSQLiteStore returns a migrated in-memory store that is closed when the test ends.
// Every call yields an isolated database.
func NewSQLiteStore(t testing.TB) *repository.SQLite {
	t.Helper()
	ctx := context.Background()

	store, err := repository.NewSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m, err := migrate.New(store.DB(), repository.DialectSQLite)
	if err != nil {
		t.Fatalf("create migrator: %v", err)
	}
	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	return store
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema rolls back and re-applies every migration on databaseURL.
func ResetSchema(ctx context.Context, databaseURL string) error {
	m, err := migrate.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Reset(ctx); err != nil {
		return err
	}
	if _, err := m.Up(ctx); err != nil {
		return err
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

var seq atomic.Int64

// UniqueName generates a user name that is unique within the test binary.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano()%1_000_000, seq.Add(1))
}

// NewTestUser creates and stores a user with a placeholder password hash.
func NewTestUser(t testing.TB, store repository.UserStore, userName string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	user := &model.User{
		UserName:     userName,
		PasswordHash: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

// NewTestCost creates and stores a cost owned by userID.
func NewTestCost(t testing.TB, store repository.CostStore, userID int64, description string, amount float64) *model.Cost {
	t.Helper()
	now := time.Now().UTC()
	cost := &model.Cost{
		UserID:      userID,
		Description: description,
		Amount:      amount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateCost(context.Background(), cost); err != nil {
		t.Fatalf("create test cost: %v", err)
	}
	return cost
}
