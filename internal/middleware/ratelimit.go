package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"peercall/pkg/clock"
	apperrors "peercall/pkg/errors"
	"peercall/pkg/logger"
	"peercall/pkg/response"
)

// RateCounter counts hits per key in fixed windows
type RateCounter interface {
	// Hit records one hit and returns the count in the current window and
	// when that window ends
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// RateLimiter limits requests per client IP
type RateLimiter struct {
	counter  RateCounter
	requests int
	window   time.Duration
	scope    string
}

// NewRateLimiter allows requests hits per window for each client.
// scope namespaces the counters so several limiters can share a backend.
func NewRateLimiter(counter RateCounter, scope string, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counter:  counter,
		requests: requests,
		window:   window,
		scope:    scope,
	}
}

// Middleware returns a gin middleware enforcing the limit
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:ip:%s", rl.scope, c.ClientIP())

		count, resetAt, err := rl.counter.Hit(c.Request.Context(), key, rl.window)
		if err != nil {
			// Fail open: a counter outage must not take signaling down
			logger.FromContext(c.Request.Context()).Warn("Rate limit check failed",
				zap.String("scope", rl.scope),
				zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(rl.requests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > int64(rl.requests) {
			response.Error(c, http.StatusTooManyRequests, string(apperrors.ErrCodeRateLimited), "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RedisRateCounter keeps counters in Redis so every replica shares them
type RedisRateCounter struct {
	client redis.Cmdable
}

// NewRedisRateCounter creates a counter on client
func NewRedisRateCounter(client redis.Cmdable) *RedisRateCounter {
	return &RedisRateCounter{client: client}
}

// Hit implements RateCounter
func (r *RedisRateCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to count request: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		// first hit of the window
		if err := r.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		remaining = window
	}
	return incr.Val(), time.Now().Add(remaining), nil
}

type rateWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryRateCounter keeps counters in process for single-instance deployments
type MemoryRateCounter struct {
	clock clock.Clock

	mu        sync.Mutex
	windows   map[string]*rateWindow
	nextSweep time.Time
}

// NewMemoryRateCounter creates an in-process counter
func NewMemoryRateCounter(clk clock.Clock) *MemoryRateCounter {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryRateCounter{
		clock:   clk,
		windows: make(map[string]*rateWindow),
	}
}

// Hit implements RateCounter
func (m *MemoryRateCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.After(m.nextSweep) {
		for k, w := range m.windows {
			if !now.Before(w.resetAt) {
				delete(m.windows, k)
			}
		}
		m.nextSweep = now.Add(window)
	}

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}
