package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type ctxKey string

// RequestIDKey and TenantIDKey are the context keys the HTTP middleware
// stores correlation fields under.
const (
	RequestIDKey ctxKey = "request_id"
	TenantIDKey  ctxKey = "tenant_id"
)

var defaultLogger *slog.Logger

// Init sets up the global logger with the given level and format
// ("json" or "text").
func Init(level, format string) {
	var logLevel slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "INFO":
		logLevel = slog.LevelInfo
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// Get returns the default logger instance.
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init("INFO", "json")
	}
	return defaultLogger
}

// WithContext returns a logger annotated with the request correlation
// fields present in ctx.
func WithContext(ctx context.Context) *slog.Logger {
	log := Get()

	if reqID := ctx.Value(RequestIDKey); reqID != nil {
		log = log.With("request_id", reqID)
	}
	if tenantID := ctx.Value(TenantIDKey); tenantID != nil {
		log = log.With("tenant_id", tenantID)
	}

	return log
}

// NewRequestID generates a UUID for request tracking.
func NewRequestID() string {
	return uuid.New().String()
}

// Fatal logs an error message and exits; slog has no Fatal level.
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}
