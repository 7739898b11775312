// Package logger builds the process-wide slog logger.
// Production writes JSON for log aggregation, everything else writes text.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options configures the logger.
type Options struct {
	Level  string
	Format Format
	Output io.Writer

	// AddSource records file:line of the call site.
	AddSource bool

	// Service is attached to every record.
	Service string
	Version string
}

// DefaultOptions returns text output at info level on stdout.
func DefaultOptions() Options {
	return Options{
		Level:  "info",
		Format: FormatText,
		Output: os.Stdout,
	}
}

// ParseLevel parses a string into a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger from opts.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if Format(strings.ToLower(string(opts.Format))) == FormatJSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	return log
}

// Setup creates a logger and makes it the slog default.
func Setup(opts Options) *slog.Logger {
	log := New(opts)
	slog.SetDefault(log)
	return log
}

type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// Domain attributes.

func Component(name string) slog.Attr { return slog.String("component", name) }
func ClassID(id string) slog.Attr     { return slog.String("class_id", id) }

// Err returns an "error" attribute; a nil error yields an empty attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
