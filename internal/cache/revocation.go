package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenPrefix = "token:revoked:"

// Denylist records revoked token ids until their natural expiry.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// RevokeIfAbsent revokes tokenID and reports false if it was already
	// revoked. Check and revoke happen atomically.
	RevokeIfAbsent(ctx context.Context, tokenID string, until time.Time) (bool, error)
}

// Revoke marks tokenID as revoked. The key expires with the token.
func (c *Cache) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedTokenPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeIfAbsent implements Denylist with SET NX.
func (c *Cache) RevokeIfAbsent(ctx context.Context, tokenID string, until time.Time) (bool, error) {
	ttl := time.Until(until)
	if ttl <= 0 {
		return false, nil
	}
	ok, err := c.client.SetNX(ctx, revokedTokenPrefix+tokenID, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return ok, nil
}

// IsRevoked reports whether tokenID was revoked.
func (c *Cache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := c.client.Get(ctx, revokedTokenPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return true, nil
}

// MemoryDenylist is a process-local Denylist for single-instance and test setups.
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryDenylist creates an empty denylist. now may be nil.
func NewMemoryDenylist(now func() time.Time) *MemoryDenylist {
	if now == nil {
		now = time.Now
	}
	return &MemoryDenylist{entries: make(map[string]time.Time), now: now}
}

// Revoke implements Denylist.
func (m *MemoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !until.After(now) {
		return nil
	}
	m.sweep(now)
	m.entries[tokenID] = until
	return nil
}

// RevokeIfAbsent implements Denylist.
func (m *MemoryDenylist) RevokeIfAbsent(_ context.Context, tokenID string, until time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !until.After(now) {
		return false, nil
	}
	if exp, ok := m.entries[tokenID]; ok && exp.After(now) {
		return false, nil
	}
	m.sweep(now)
	m.entries[tokenID] = until
	return true, nil
}

// sweep drops expired entries so the map stays bounded by live tokens.
// Callers hold m.mu.
func (m *MemoryDenylist) sweep(now time.Time) {
	for id, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, id)
		}
	}
}

// IsRevoked implements Denylist.
func (m *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.entries[tokenID]
	return ok && exp.After(m.now()), nil
}

// Len returns the number of tracked entries.
func (m *MemoryDenylist) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
