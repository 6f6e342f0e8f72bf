package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/costtrack/costtrack/internal/cache"
	"github.com/costtrack/costtrack/internal/handler/dto"
	"github.com/costtrack/costtrack/internal/i18n"
	"github.com/costtrack/costtrack/internal/metrics"
)

// IPRateLimitConfig configures per-client limiting.
type IPRateLimitConfig struct {
	Logger  *slog.Logger
	Limiter cache.IPLimiter
	Metrics metrics.Recorder
	// Scope labels log lines and metrics, e.g. "auth".
	Scope string
}

// RateLimitIP limits requests per client IP. A limiter error fails open.
func RateLimitIP(cfg IPRateLimitConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return func(next http.Handler) http.Handler {
		if cfg.Limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			result, err := cfg.Limiter.AllowIP(r.Context(), ip)
			if err != nil {
				cfg.Logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("scope", cfg.Scope),
				)
			}
			if result == nil || result.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			cfg.Logger.Warn("rate limit exceeded",
				slog.String("scope", cfg.Scope),
				slog.String("ip", ip),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Int64("retry_after_seconds", retryAfterSeconds(result.RetryAfter)),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			recorder.IncRateLimited(cfg.Scope)
			writeRateLimited(w, r, result.RetryAfter)
		})
	}
}

// GlobalRateLimit caps total throughput with a single token bucket.
// rps <= 0 disables it.
func GlobalRateLimit(rps float64, burst int, recorder metrics.Recorder) func(http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return func(next http.Handler) http.Handler {
		if rps <= 0 {
			return next
		}
		if burst <= 0 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				recorder.IncRateLimited("global")
				writeRateLimited(w, r, delay)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(retryAfter), 10))
	writeError(w, r, http.StatusTooManyRequests, dto.CodeRateLimited, i18n.MsgTooManyRequests)
}

func retryAfterSeconds(d time.Duration) int64 {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware has
// already applied X-Forwarded-For / X-Real-IP when the router uses it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
