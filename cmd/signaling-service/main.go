package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"peercall/internal/config"
	wsHandler "peercall/internal/handler/ws"
	"peercall/internal/middleware"
	"peercall/internal/repository/cockroach"
	"peercall/internal/repository/memory"
	redisRepo "peercall/internal/repository/redis"
	"peercall/internal/router"
	"peercall/internal/service/identity"
	"peercall/internal/service/matchmaking"
	"peercall/internal/service/presence"
	"peercall/pkg/clock"
	"peercall/pkg/constants"
	"peercall/pkg/database"
	"peercall/pkg/logger"
	"peercall/pkg/metrics"
)

const serviceName = "signaling-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.InitDefault()
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	if err := logger.Init(&cfg.Log); err != nil {
		logger.InitDefault()
		logger.Warn("Falling back to default logger", zap.Error(err))
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appMetrics := metrics.NewMetrics(serviceName)
	healthChecks := map[string]middleware.HealthChecker{}

	// 1. Identity store
	var (
		store       identity.IdentityStore
		rateCounter middleware.RateCounter = middleware.NewMemoryRateCounter(clock.System{})
	)
	switch cfg.IdentityBackend {
	case config.BackendRedis:
		redisDB, err := connectWithRetry(ctx, "Redis", func() (*database.RedisDB, error) {
			return database.NewRedisDB(ctx, &cfg.Redis)
		})
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisDB.Close()

		redisDB.StartHealthCheck(ctx, 10*time.Second)
		healthChecks["redis"] = func() error {
			if redisDB.IsDegraded() {
				return errors.New("redis unavailable")
			}
			return nil
		}
		store = redisRepo.NewIdentityRepository(redisDB.Client)
		rateCounter = middleware.NewRedisRateCounter(redisDB.Client)

	case config.BackendPostgres:
		db, err := connectWithRetry(ctx, "CockroachDB", func() (*database.CockroachDB, error) {
			return database.NewCockroachDB(ctx, &cfg.Database)
		})
		if err != nil {
			logger.Fatal("Failed to connect to CockroachDB", zap.Error(err))
		}
		defer db.Close()

		repo := cockroach.NewIdentityRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to prepare identity schema", zap.Error(err))
		}
		healthChecks["database"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Ping(pingCtx)
		}
		store = repo

	default:
		logger.Warn("Using in-memory identity store; identities are lost on restart")
		store = memory.NewIdentityRepository()
	}

	// 2. Services
	identitySvc := identity.NewService(store, clock.System{}, appMetrics)
	presenceSvc := presence.NewService(cfg.PresenceWindow, clock.System{}, appMetrics)
	poolSvc := matchmaking.NewService(appMetrics)

	// 3. Peer broker
	broker := wsHandler.NewPeerBroker(wsHandler.BrokerConfig{
		MaxConnections: cfg.BrokerMaxConnections,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, poolSvc, appMetrics)

	var registerLimiter *middleware.RateLimiter
	if cfg.RegisterRateLimit > 0 {
		registerLimiter = middleware.NewRateLimiter(rateCounter, "register", cfg.RegisterRateLimit, cfg.RegisterRateWindow)
	}

	// 4. Router
	engine := router.New(router.Dependencies{
		ServiceName:    serviceName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		BrokerPath:     cfg.BrokerPath,
		Identity:       identitySvc,
		Presence:       presenceSvc,
		Pool:           poolSvc,
		Broker:         broker,
		Metrics:        appMetrics,
		HealthChecks:   healthChecks,

		RegisterLimiter: registerLimiter,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Signaling service starting",
			zap.String("addr", srv.Addr),
			zap.String("identity_backend", cfg.IdentityBackend),
			zap.String("broker_path", cfg.BrokerPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down signaling service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// connectWithRetry retries connect with exponential backoff
func connectWithRetry[T any](ctx context.Context, name string, connect func() (T, error)) (T, error) {
	const maxRetries = 5
	baseDelay := time.Second
	maxDelay := 30 * time.Second

	var (
		conn T
		err  error
	)
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err = connect()
		if err == nil {
			logger.Info("Connected", zap.String("backend", name), zap.Int("attempt", attempt))
			return conn, nil
		}
		if attempt == maxRetries {
			break
		}

		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxDelay {
			delay = maxDelay
		}
		logger.Warn("Connection attempt failed",
			zap.String("backend", name),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return conn, ctx.Err()
		case <-time.After(delay):
		}
	}
	return conn, err
}
