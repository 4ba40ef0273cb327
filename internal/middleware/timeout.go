package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"peercall/pkg/logger"
)

// RequestTimeout bounds the request context so slow identity store calls
// give up instead of piling up. Long-lived websocket routes must not use it.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if ctx.Err() == context.DeadlineExceeded {
			logger.FromContext(ctx).Warn("Request timed out",
				zap.Duration("timeout", timeout),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path))
		}
	}
}
