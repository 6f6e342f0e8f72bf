package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/costtrack/costtrack/internal/cache"
	"github.com/costtrack/costtrack/internal/metrics"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitIP_PerClient(t *testing.T) {
	rec := metrics.NewInMemory()
	h := RateLimitIP(IPRateLimitConfig{
		Logger:  discardLogger(),
		Limiter: cache.NewMemoryIPLimiter(60, 2),
		Metrics: rec,
		Scope:   "auth",
	})(okHandler())

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1111").Code)
	// Same IP, different source port.
	assert.Equal(t, http.StatusOK, send("10.0.0.1:2222").Code)
	limited := send("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2:1111").Code)
	assert.Equal(t, uint64(1), rec.Snapshot().Get("rate_limited:auth"))
}

type failingLimiter struct{}

func (failingLimiter) AllowIP(context.Context, string) (*cache.RateLimitResult, error) {
	return nil, errors.New("redis unavailable")
}

func TestRateLimitIP_FailsOpen(t *testing.T) {
	h := RateLimitIP(IPRateLimitConfig{Logger: discardLogger(), Limiter: failingLimiter{}, Scope: "auth"})(okHandler())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/signup", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGlobalRateLimit(t *testing.T) {
	rec := metrics.NewInMemory()
	h := GlobalRateLimit(1, 2, rec)(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, uint64(1), rec.Snapshot().Get("rate_limited:global"))
}

func TestGlobalRateLimit_Disabled(t *testing.T) {
	h := GlobalRateLimit(0, 0, nil)(okHandler())
	for range 50 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, int64(1), retryAfterSeconds(0))
	assert.Equal(t, int64(1), retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, int64(3), retryAfterSeconds(2100*time.Millisecond))
}
