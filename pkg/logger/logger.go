// Package logger holds the process-wide zap logger. It is a no-op until
// Init or InitDefault runs, so libraries and tests can log freely.
package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global logger instance
var Log = zap.NewNop()

// Config holds logger configuration
type Config struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

func (c *Config) zapConfig() zap.Config {
	var zc zap.Config
	if c.Format == "text" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if c.Output == "file" && c.FilePath != "" {
		zc.OutputPaths = []string{c.FilePath}
		zc.ErrorOutputPaths = []string{c.FilePath}
	}
	return zc
}

// Init replaces the global logger with one built from cfg
func Init(cfg *Config) error {
	l, err := cfg.zapConfig().Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// InitDefault installs a JSON production logger at info level. Used when
// the configured logger cannot be built.
func InitDefault() {
	if err := Init(&Config{Level: "info", Format: "json"}); err != nil {
		l, _ := zap.NewProduction()
		SetLogger(l)
	}
}

// SetLogger replaces the global logger. Tests use it to capture output.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	Log = l
}

type contextKey struct{}

// WithRequestID stores the request id for FromContext
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns the global logger tagged with the request id, if any
func FromContext(ctx context.Context) *zap.Logger {
	if requestID, ok := ctx.Value(contextKey{}).(string); ok && requestID != "" {
		return Log.With(zap.String("request_id", requestID))
	}
	return Log
}

func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }

// Fatal logs and exits the process
func Fatal(msg string, fields ...zap.Field) { Log.Fatal(msg, fields...) }

// Sync flushes any buffered log entries
func Sync() error {
	return Log.Sync()
}
