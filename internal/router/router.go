// Package router wires the signaling HTTP surface onto a gin engine.
package router

import (
	"time"

	"github.com/gin-gonic/gin"

	identityHandler "peercall/internal/handler/http/identity"
	presenceHandler "peercall/internal/handler/http/presence"
	randomHandler "peercall/internal/handler/http/random"
	wsHandler "peercall/internal/handler/ws"
	"peercall/internal/middleware"
	"peercall/pkg/metrics"
)

// Dependencies are the services and settings the routes are built from.
// Broker, RegisterLimiter and HealthChecks are optional.
type Dependencies struct {
	ServiceName    string
	AllowedOrigins []string
	RequestTimeout time.Duration
	BrokerPath     string

	Identity identityHandler.Registrar
	Presence presenceHandler.Tracker
	Pool     randomHandler.Pool
	Broker   *wsHandler.PeerBroker

	RegisterLimiter *middleware.RateLimiter

	Metrics      *metrics.Metrics
	HealthChecks map[string]middleware.HealthChecker
}

// New builds the gin engine serving the signaling routes
func New(deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))
	router.Use(middleware.NewPrometheusMiddleware(deps.Metrics).Handler())

	router.GET("/health", middleware.HealthHandler(deps.ServiceName, deps.HealthChecks))
	router.GET("/metrics", middleware.MetricsHandler(deps.Metrics))

	identityHdlr := identityHandler.NewHandler(deps.Identity)
	presenceHdlr := presenceHandler.NewHandler(deps.Presence)
	randomHdlr := randomHandler.NewHandler(deps.Pool)

	api := router.Group("")
	if deps.RequestTimeout > 0 {
		api.Use(middleware.RequestTimeout(deps.RequestTimeout))
	}
	{
		register := []gin.HandlerFunc{identityHdlr.Register}
		if deps.RegisterLimiter != nil {
			register = append([]gin.HandlerFunc{deps.RegisterLimiter.Middleware()}, register...)
		}
		api.POST("/register", register...)

		api.POST("/presence/ping", presenceHdlr.Ping)
		api.GET("/presence/online", presenceHdlr.Online)

		api.POST("/random/register", randomHdlr.Register)
		api.GET("/random/match", randomHdlr.Match)
		api.POST("/random/unregister", randomHdlr.Unregister)
	}

	if deps.Broker != nil {
		path := deps.BrokerPath
		if path == "" {
			path = "/peerjs"
		}
		router.GET(path, deps.Broker.ServeWS)
	}

	return router
}
