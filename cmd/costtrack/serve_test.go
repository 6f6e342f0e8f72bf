package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costtrack/costtrack/internal/config"
	"github.com/costtrack/costtrack/internal/metrics"
	"github.com/costtrack/costtrack/internal/model"
	"github.com/costtrack/costtrack/internal/repository"
	"github.com/costtrack/costtrack/internal/webhook"
)

// useConfig installs c and a silent logger as the command globals.
func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prevCfg, prevLogger := cfg, logger
	cfg = c
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	t.Cleanup(func() { cfg, logger = prevCfg, prevLogger })
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestMigrateStore_SQLite(t *testing.T) {
	ctx := context.Background()
	url := "sqlite:" + filepath.Join(t.TempDir(), "costs.db")
	useConfig(t, &config.Config{DatabaseURL: url})

	store, err := repository.Open(ctx, url)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, migrateStore(ctx, store))
	// Already at the latest version.
	require.NoError(t, migrateStore(ctx, store))

	user := &model.User{UserName: "alice", PasswordHash: "hash"}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)
}

func TestRunServer_MigrationFailureNeverListens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "costs.db")

	// A conflicting users table makes the first migration fail.
	pre, err := repository.NewSQLite(ctx, path)
	require.NoError(t, err)
	_, err = pre.DB().ExecContext(ctx, "CREATE TABLE users (legacy INTEGER)")
	require.NoError(t, err)
	require.NoError(t, pre.Close())

	port := freePort(t)
	useConfig(t, &config.Config{
		AppHost:         "127.0.0.1",
		AppPort:         port,
		DatabaseURL:     "sqlite:" + path,
		JWTSecretKey:    "test-secret-key-0123456789",
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		ShutdownTimeout: time.Second,
	})

	done := make(chan error, 1)
	go func() { done <- runServer(true) }()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runServer did not return after a failed migration")
	}

	conn, err := net.DialTimeout("tcp", cfg.Addr(), 200*time.Millisecond)
	if err == nil {
		conn.Close()
		t.Fatalf("expected nothing listening on %s", cfg.Addr())
	}
}

func TestBuildApp(t *testing.T) {
	ctx := context.Background()
	store, err := repository.NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	base := config.Config{
		AppEnv:                 "development",
		JWTSecretKey:           "test-secret-key-0123456789",
		AccessTokenTTL:         5 * time.Minute,
		RefreshTokenTTL:        24 * time.Hour,
		AuthRateLimitPerMinute: 20,
	}

	t.Run("without redis", func(t *testing.T) {
		c := base
		useConfig(t, &c)

		a, err := buildApp(&c, store, nil, metrics.NewNoop())
		require.NoError(t, err)
		assert.NotNil(t, a.auth)
		assert.NotNil(t, a.costs)
		assert.NotNil(t, a.limiter)
		assert.Nil(t, a.notifier)
		assert.Contains(t, a.health, "redis")
		assert.Nil(t, a.health["redis"])
		assert.Equal(t, 5*time.Minute, a.cookies.AccessTTL)
	})

	t.Run("webhook in development", func(t *testing.T) {
		c := base
		c.WebhookURL = "http://127.0.0.1:9000/hook"
		c.WebhookSecret = "whsec_test"
		useConfig(t, &c)

		a, err := buildApp(&c, store, nil, metrics.NewNoop())
		require.NoError(t, err)
		require.NotNil(t, a.notifier)
	})

	t.Run("private webhook outside development", func(t *testing.T) {
		c := base
		c.AppEnv = "production"
		c.WebhookURL = "https://localhost/hook"
		c.WebhookSecret = "whsec_test"
		useConfig(t, &c)

		_, err := buildApp(&c, store, nil, metrics.NewNoop())
		require.Error(t, err)
		assert.ErrorIs(t, err, webhook.ErrLocalhostBlocked)
	})
}
