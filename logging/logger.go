// Package logging provides the structured slog wrapper used throughout
// the job control plane: JSON (or text) output, request correlation IDs,
// and optional sampling/metrics handlers layered on top of the standard
// library's slog.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

type contextKey string

const (
	ContextKeyCorrelationID     = contextKey("correlation_id")
	ContextKeyRequestID         = contextKey("request_id")
	ContextKeyOperationDuration = contextKey("operation_duration")
)

// Logger wraps slog.Logger with a dynamically adjustable level and a
// handful of component-scoped convenience constructors.
type Logger struct {
	*slog.Logger
	config      *Config
	mu          sync.RWMutex
	serviceName string
	environment string
	location    *time.Location
	levelVar    *slog.LevelVar
}

// Config controls how a Logger is constructed.
type Config struct {
	Level          slog.Level
	OutputFormat   string // "json" or "text"
	AddSource      bool
	EnableSampling bool
	SampleRate     float64
	EnableMetrics  bool
	Timezone       string // IANA name; empty means UTC
	Output         io.Writer
}

// DefaultConfig returns the production-leaning default.
func DefaultConfig() *Config {
	return &Config{
		Level:        slog.LevelInfo,
		OutputFormat: "json",
		AddSource:    false,
		SampleRate:   1.0,
		Output:       os.Stdout,
	}
}

// New builds a Logger for serviceName using cfg.
func New(serviceName string, cfg *Config) (*Logger, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
	}

	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(cfg.Level)

	opts := &slog.HandlerOptions{Level: levelVar, AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.OutputFormat == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	handler = NewLocationHandler(handler, loc)
	handler = NewContextualHandler(handler)

	if cfg.EnableSampling && cfg.SampleRate < 1.0 {
		handler = NewSamplingHandler(handler, cfg.SampleRate)
	}
	if cfg.EnableMetrics {
		handler = NewMetricsHandler(handler, serviceName)
	}

	environment := os.Getenv("ENV")
	if environment == "" {
		environment = "development"
	}

	logger := slog.New(handler).With(
		slog.String("service", serviceName),
		slog.String("environment", environment),
		slog.Int("pid", os.Getpid()),
	)

	return &Logger{
		Logger:      logger,
		config:      cfg,
		serviceName: serviceName,
		environment: environment,
		location:    loc,
		levelVar:    levelVar,
	}, nil
}

// SetLevel dynamically changes the log level.
func (l *Logger) SetLevel(level slog.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levelVar.Set(level)
	l.config.Level = level
}

// ForUpload scopes a logger to an upload operation on a given filename.
func (l *Logger) ForUpload(filename string) *slog.Logger {
	return l.With(slog.String("operation", "upload"), slog.String("filename", filename))
}

// ForJob scopes a logger to a job's lifecycle.
func (l *Logger) ForJob(jobID string) *slog.Logger {
	return l.With(slog.String("component", "job"), slog.String("job_id", jobID))
}

// ForWebSocket scopes a logger to a connected client.
func (l *Logger) ForWebSocket(clientID string) *slog.Logger {
	return l.With(slog.String("component", "websocket"), slog.String("client_id", clientID))
}

// WithOperation attaches an operation tag.
func (l *Logger) WithOperation(operation string) *slog.Logger {
	return l.With(slog.String("operation", operation))
}

// LogRequest logs a finished HTTP request at a level derived from its status.
func (l *Logger) LogRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	l.LogAttrs(ctx, level, "http request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status_code", statusCode),
		slog.Duration("duration", duration),
		slog.String("type", "http_request"),
	)
}
