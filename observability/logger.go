// Package observability provides the structured logger and tracer setup
// used across the runtime. Log records carry trace and span ids when a span
// is active, so logs and traces correlate.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// LoggerOptions controls TracedLogger construction.
type LoggerOptions struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string

	// Format is "json" or "text". Defaults to json.
	Format string

	// Output receives log records. Defaults to stderr.
	Output io.Writer
}

// TracedLogger is a slog.Logger wrapper that injects trace correlation ids
// into every context-aware record.
type TracedLogger struct {
	logger *slog.Logger
}

// NewTracedLogger builds a logger from options.
func NewTracedLogger(opts LoggerOptions) *TracedLogger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	level := parseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.Format == "text" {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	}

	return &TracedLogger{logger: slog.New(handler)}
}

// NopLogger returns a logger that discards everything. Useful as the
// nil-safe default for optional logger parameters.
func NopLogger() *TracedLogger {
	return &TracedLogger{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// withTrace appends trace_id and span_id attributes when ctx carries an
// active span.
func withTrace(ctx context.Context, args []any) []any {
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return args
	}
	return append(args,
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}

// Debug logs at debug level with trace correlation.
func (l *TracedLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, withTrace(ctx, args)...)
}

// Info logs at info level with trace correlation.
func (l *TracedLogger) Info(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, withTrace(ctx, args)...)
}

// Warn logs at warn level with trace correlation.
func (l *TracedLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, withTrace(ctx, args)...)
}

// Error logs at error level with trace correlation. A non-nil err is
// attached as the "error" attribute.
func (l *TracedLogger) Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	l.logger.ErrorContext(ctx, msg, withTrace(ctx, args)...)
}

// With returns a logger carrying additional fixed attributes.
func (l *TracedLogger) With(args ...any) *TracedLogger {
	return &TracedLogger{logger: l.logger.With(args...)}
}

// Slog exposes the underlying slog.Logger for interop.
func (l *TracedLogger) Slog() *slog.Logger {
	return l.logger
}
