package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"peercall/pkg/logger"

	"go.uber.org/zap"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int           // Redis database number (0-15)
	PoolSize int           // Connection pool size
	Timeout  time.Duration // Command timeout
}

// RedisDB wraps the Redis client and tracks whether the last health
// check failed
type RedisDB struct {
	Client *redis.Client

	mu       sync.RWMutex
	degraded bool
}

// NewRedisDB creates a new Redis client and verifies the connection
func NewRedisDB(ctx context.Context, config *RedisConfig) (*RedisDB, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDB{Client: client}, nil
}

// Close closes the Redis connection
func (r *RedisDB) Close() error {
	return r.Client.Close()
}

// Ping tests the Redis connection and records the result
func (r *RedisDB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := r.Client.Ping(pingCtx).Err()
	r.setDegraded(err != nil)
	if err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// IsDegraded reports whether the most recent health check failed
func (r *RedisDB) IsDegraded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.degraded
}

func (r *RedisDB) setDegraded(degraded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.degraded != degraded {
		r.degraded = degraded
		if degraded {
			logger.Warn("Redis entered degraded mode")
		} else {
			logger.Info("Redis recovered from degraded mode")
		}
	}
}

// StartHealthCheck pings Redis every interval until ctx is cancelled
func (r *RedisDB) StartHealthCheck(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Ping(ctx); err != nil {
					logger.Debug("Redis health check failed", zap.Error(err))
				}
			}
		}
	}()
}
