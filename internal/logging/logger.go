// Package logging configures the process-wide zerolog logger and carries a
// run-scoped logger through context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config controls logger output.
type Config struct {
	// Level is one of trace, debug, info, warn, error, disabled. Default info.
	Level string
	// Format is json or console. Default json.
	Format string
	// NoColor disables ANSI colors in console format.
	NoColor bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init replaces the global logger. It is safe to call more than once.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05", NoColor: cfg.NoColor}
	}

	mu.Lock()
	log = zerolog.New(out).With().Timestamp().Logger()
	mu.Unlock()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

type ctxKey struct{}

// NewRunID returns a short identifier for one pipeline run.
func NewRunID() string {
	return uuid.New().String()[:8]
}

// WithRun returns a context whose logger carries run_id.
func WithRun(ctx context.Context, runID string) context.Context {
	l := FromContext(ctx).With().Str("run_id", runID).Logger()
	return context.WithValue(ctx, ctxKey{}, l)
}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return Logger()
}

// Ctx is shorthand for a pointer to FromContext(ctx).
func Ctx(ctx context.Context) *zerolog.Logger {
	l := FromContext(ctx)
	return &l
}
