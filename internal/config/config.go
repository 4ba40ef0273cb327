// Package config loads the signaling service configuration from the
// environment.
package config

import (
	"fmt"
	"time"

	"peercall/pkg/constants"
	"peercall/pkg/database"
	"peercall/pkg/env"
	"peercall/pkg/logger"
)

// Identity store backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds the signaling service configuration
type Config struct {
	Env  string
	Port int

	CORSAllowedOrigins []string

	IdentityBackend string
	Redis           database.RedisConfig
	Database        database.CockroachConfig

	PresenceWindow time.Duration
	RequestTimeout time.Duration

	BrokerPath           string
	BrokerMaxConnections int

	// RegisterRateLimit caps registrations per client IP per
	// RegisterRateWindow. Zero disables the limit.
	RegisterRateLimit  int
	RegisterRateWindow time.Duration

	Log logger.Config
}

// Load reads the configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Env:  env.GetString("ENV", "development"),
		Port: env.GetInt("PORT", 5000),

		CORSAllowedOrigins: env.GetList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		IdentityBackend: env.GetString("IDENTITY_BACKEND", BackendMemory),
		Redis: database.RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  env.GetDuration("REDIS_TIMEOUT", 3*time.Second),
		},
		Database: database.CockroachConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "peercall"),
			SSLMode:  env.GetString("DB_SSLMODE", "disable"),
			MaxConns: int32(env.GetInt("DB_MAX_CONNS", 10)),
		},

		PresenceWindow: env.GetDuration("PRESENCE_WINDOW", constants.PresenceWindow),
		RequestTimeout: env.GetDuration("REQUEST_TIMEOUT", constants.DefaultTimeout),

		BrokerPath:           env.GetString("BROKER_PATH", "/peerjs"),
		BrokerMaxConnections: env.GetInt("BROKER_MAX_CONNECTIONS", 1000),

		RegisterRateLimit:  env.GetInt("REGISTER_RATE_LIMIT", 30),
		RegisterRateWindow: env.GetDuration("REGISTER_RATE_WINDOW", time.Minute),

		Log: logger.Config{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	switch c.IdentityBackend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("unknown IDENTITY_BACKEND %q (want memory, redis or postgres)", c.IdentityBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.PresenceWindow <= 0 {
		return fmt.Errorf("PRESENCE_WINDOW must be positive, got %s", c.PresenceWindow)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.BrokerMaxConnections <= 0 {
		return fmt.Errorf("BROKER_MAX_CONNECTIONS must be positive, got %d", c.BrokerMaxConnections)
	}
	if c.RegisterRateLimit < 0 {
		return fmt.Errorf("REGISTER_RATE_LIMIT must not be negative, got %d", c.RegisterRateLimit)
	}
	if c.RegisterRateLimit > 0 && c.RegisterRateWindow <= 0 {
		return fmt.Errorf("REGISTER_RATE_WINDOW must be positive, got %s", c.RegisterRateWindow)
	}
	if len(c.BrokerPath) == 0 || c.BrokerPath[0] != '/' {
		return fmt.Errorf("BROKER_PATH must start with '/', got %q", c.BrokerPath)
	}
	return nil
}

// IsProduction reports whether the service runs with ENV=production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
