package auth

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestIssuer(t *testing.T) (*TokenIssuer, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewTokenIssuer("test-secret-key-0123456789", 5*time.Minute, 24*time.Hour, clock.Now), clock
}

func TestIssuePair_Lifetimes(t *testing.T) {
	t.Parallel()

	issuer, _ := newTestIssuer(t)
	pair, err := issuer.IssuePair(42)
	require.NoError(t, err)

	access, err := issuer.Parse(pair.Access, TokenAccess)
	require.NoError(t, err)
	refresh, err := issuer.Parse(pair.Refresh, TokenRefresh)
	require.NoError(t, err)

	assert.Equal(t, int64(42), access.UserID)
	assert.Equal(t, int64(42), refresh.UserID)
	assert.Equal(t, int64(300), access.ExpiresAt.Unix()-access.IssuedAt.Unix())
	assert.Equal(t, int64(86400), refresh.ExpiresAt.Unix()-refresh.IssuedAt.Unix())
	assert.NotEqual(t, access.ID, refresh.ID)
	assert.Equal(t, pair.AccessClaims.ID, access.ID)
}

func TestParse_WrongType(t *testing.T) {
	t.Parallel()

	issuer, _ := newTestIssuer(t)
	pair, err := issuer.IssuePair(1)
	require.NoError(t, err)

	_, err = issuer.Parse(pair.Refresh, TokenAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	assert.Contains(t, err.Error(), "token type")

	_, err = issuer.Parse(pair.Access, TokenRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	issuer, clock := newTestIssuer(t)
	pair, err := issuer.IssuePair(1)
	require.NoError(t, err)

	clock.Advance(5*time.Minute - time.Second)
	_, err = issuer.Parse(pair.Access, TokenAccess)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = issuer.Parse(pair.Access, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Refresh token outlives the access token.
	_, err = issuer.Parse(pair.Refresh, TokenRefresh)
	assert.NoError(t, err)
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	issuer, clock := newTestIssuer(t)
	pair, err := issuer.IssuePair(1)
	require.NoError(t, err)

	parts := strings.Split(pair.Access, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[5] == 'A' {
		sig[5] = 'B'
	} else {
		sig[5] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	other := NewTokenIssuer("another-secret-key-987654321", time.Minute, time.Hour, clock.Now)
	foreign, err := other.IssuePair(1)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "invalid.token.here"},
		{"tampered signature", tampered},
		{"signed with other key", foreign.Access},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Parse(tt.token, TokenAccess)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
