package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"peercall/pkg/logger"
	"peercall/pkg/response"
)

// Recovery recovers from panics and returns 500 error
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.FromContext(c.Request.Context()).Error("Panic recovered",
					zap.String("panic", fmt.Sprintf("%v", err)),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", debug.Stack()))

				response.InternalError(c, "Internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// HealthChecker reports whether a dependency is usable
type HealthChecker func() error

// HealthHandler reports liveness plus the state of each named dependency.
// A failing dependency marks the service degraded but still answers 200,
// since the presence and matchmaking routes keep working without it.
func HealthHandler(serviceName string, checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(); err != nil {
				deps[name] = err.Error()
				status = "degraded"
				continue
			}
			deps[name] = "ok"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       status,
			"service":      serviceName,
			"dependencies": deps,
		})
	}
}
