package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	// rateLimitAuthPrefix is the Redis key prefix for signup/login limits per IP.
	rateLimitAuthPrefix = "ratelimit:auth:"
	// rateLimitAuthTTL is the TTL for auth rate limit keys.
	rateLimitAuthTTL = 120 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// IPLimiter limits requests per client IP.
type IPLimiter interface {
	AllowIP(ctx context.Context, ip string) (*RateLimitResult, error)
}

// tokenBucketScript is a Lua script implementing the token bucket algorithm.
// It's atomic and handles token refill and consumption in a single operation.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- max tokens (bucket capacity)
	local now = tonumber(ARGV[3])       -- current time in seconds
	local ttl = tonumber(ARGV[4])       -- TTL in seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = now - last_update
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// RedisIPLimiter is a token bucket per IP shared by every instance through Redis.
type RedisIPLimiter struct {
	cache         *Cache
	ratePerMinute int
	burst         int
}

// NewRedisIPLimiter creates a limiter allowing ratePerMinute requests with the given burst.
func NewRedisIPLimiter(c *Cache, ratePerMinute, burst int) *RedisIPLimiter {
	return &RedisIPLimiter{cache: c, ratePerMinute: ratePerMinute, burst: burst}
}

// AllowIP consumes one token for ip. Redis errors fail open.
func (l *RedisIPLimiter) AllowIP(ctx context.Context, ip string) (*RateLimitResult, error) {
	if l.ratePerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(l.burst)}, nil
	}

	key := rateLimitAuthPrefix + hashIP(ip)
	ratePerSecond := float64(l.ratePerMinute) / 60.0

	result, err := tokenBucketScript.Run(ctx, l.cache.client,
		[]string{key},
		ratePerSecond, l.burst, time.Now().Unix(), int(rateLimitAuthTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		return &RateLimitResult{Allowed: true, Remaining: int64(l.burst)}, err
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		RetryAfter: time.Duration(result[1]) * time.Second,
		Remaining:  result[2],
	}, nil
}

// DefaultMaxTrackedIPs bounds the clients a MemoryIPLimiter remembers.
const DefaultMaxTrackedIPs = 10000

// MemoryIPLimiter keeps one x/time/rate limiter per IP in process memory,
// for single-instance deployments. Entries idle long enough to have refilled
// are dropped, and the least recently seen client is evicted once
// MaxEntries are tracked.
type MemoryIPLimiter struct {
	mu            sync.Mutex
	entries       map[string]*list.Element
	order         *list.List // front is most recently seen
	ratePerMinute int
	burst         int
	idle          time.Duration

	// MaxEntries defaults to DefaultMaxTrackedIPs.
	MaxEntries int
	// Now defaults to time.Now.
	Now func() time.Time
}

type ipEntry struct {
	ip       string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryIPLimiter creates a process-local limiter.
func NewMemoryIPLimiter(ratePerMinute, burst int) *MemoryIPLimiter {
	idle := time.Minute
	if ratePerMinute > 0 {
		if refill := time.Duration(float64(burst) / float64(ratePerMinute) * float64(time.Minute)); refill > idle {
			idle = refill
		}
	}
	return &MemoryIPLimiter{
		entries:       make(map[string]*list.Element),
		order:         list.New(),
		ratePerMinute: ratePerMinute,
		burst:         burst,
		idle:          idle,
		MaxEntries:    DefaultMaxTrackedIPs,
		Now:           time.Now,
	}
}

// AllowIP implements IPLimiter.
func (l *MemoryIPLimiter) AllowIP(_ context.Context, ip string) (*RateLimitResult, error) {
	if l.ratePerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(l.burst)}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	var e *ipEntry
	if el, ok := l.entries[ip]; ok {
		e = el.Value.(*ipEntry)
		l.order.MoveToFront(el)
	} else {
		l.evict(now)
		e = &ipEntry{ip: ip, limiter: rate.NewLimiter(rate.Limit(float64(l.ratePerMinute)/60.0), l.burst)}
		l.entries[ip] = l.order.PushFront(e)
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &RateLimitResult{Allowed: false, RetryAfter: delay}, nil
	}
	return &RateLimitResult{Allowed: true, Remaining: int64(e.limiter.TokensAt(now))}, nil
}

// evict drops idle entries, then the oldest ones until there is room for
// one more. Callers hold l.mu.
func (l *MemoryIPLimiter) evict(now time.Time) {
	for el := l.order.Back(); el != nil; el = l.order.Back() {
		e := el.Value.(*ipEntry)
		if now.Sub(e.lastSeen) < l.idle && l.order.Len() < l.maxEntries() {
			return
		}
		l.order.Remove(el)
		delete(l.entries, e.ip)
	}
}

func (l *MemoryIPLimiter) maxEntries() int {
	if l.MaxEntries <= 0 {
		return DefaultMaxTrackedIPs
	}
	return l.MaxEntries
}

// Len returns the number of tracked clients.
func (l *MemoryIPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// hashIP creates a truncated SHA256 hash of an IP address so raw addresses
// are never stored in Redis.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
