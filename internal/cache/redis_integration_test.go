//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/costtrack/costtrack/internal/testutil"
)

func newRedisTestCache(t *testing.T) *Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis test in short mode")
	}
	url := testutil.RequireEnv(t, "REDIS_URL")
	ctx := context.Background()

	c, err := New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return c
}

func TestIntegrationRedisDenylist(t *testing.T) {
	c := newRedisTestCache(t)
	ctx := context.Background()

	if err := c.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	revoked, err := c.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, got %v %v", revoked, err)
	}

	ttl, err := c.Client().TTL(ctx, revokedTokenPrefix+"jti-1").Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected TTL %v (%v)", ttl, err)
	}

	revoked, err = c.IsRevoked(ctx, "jti-2")
	if err != nil || revoked {
		t.Errorf("expected jti-2 not revoked, got %v %v", revoked, err)
	}
}

func TestIntegrationRedisRevokeIfAbsent(t *testing.T) {
	c := newRedisTestCache(t)
	ctx := context.Background()
	until := time.Now().Add(time.Minute)

	first, err := c.RevokeIfAbsent(ctx, "jti-refresh", until)
	if err != nil || !first {
		t.Fatalf("first RevokeIfAbsent = %v, %v; want true", first, err)
	}
	first, err = c.RevokeIfAbsent(ctx, "jti-refresh", until)
	if err != nil || first {
		t.Fatalf("second RevokeIfAbsent = %v, %v; want false", first, err)
	}
	if revoked, _ := c.IsRevoked(ctx, "jti-refresh"); !revoked {
		t.Error("expected jti-refresh revoked")
	}
}

func TestIntegrationRedisIPLimiter(t *testing.T) {
	c := newRedisTestCache(t)
	ctx := context.Background()
	l := NewRedisIPLimiter(c, 60, 2)

	for i := 0; i < 2; i++ {
		res, err := l.AllowIP(ctx, "10.1.1.1")
		if err != nil || !res.Allowed {
			t.Fatalf("request %d should be allowed: %+v %v", i, res, err)
		}
	}

	res, err := l.AllowIP(ctx, "10.1.1.1")
	if err != nil {
		t.Fatalf("AllowIP: %v", err)
	}
	if res.Allowed {
		t.Error("third request should be denied")
	}
}
