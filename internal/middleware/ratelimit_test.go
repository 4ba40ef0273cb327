package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peercall/pkg/clock"
)

type failingCounter struct{}

func (failingCounter) Hit(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("redis: connection refused")
}

func newLimitedRouter(counter RateCounter, requests int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/register", NewRateLimiter(counter, "register", requests, time.Minute).Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": "x"})
	})
	return r
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	r := newLimitedRouter(NewMemoryRateCounter(clk), 2)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/register", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/register", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	clk.Advance(time.Minute)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/register", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	r := newLimitedRouter(failingCounter{}, 1)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/register", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestMemoryRateCounter_SeparatesKeys(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	counter := NewMemoryRateCounter(clk)
	ctx := context.Background()

	n, resetAt, err := counter.Hit(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, clk.Now().Add(time.Minute), resetAt)

	n, _, _ = counter.Hit(ctx, "a", time.Minute)
	assert.EqualValues(t, 2, n)

	n, _, _ = counter.Hit(ctx, "b", time.Minute)
	assert.EqualValues(t, 1, n)
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/presence/online", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"online": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presence/online", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
