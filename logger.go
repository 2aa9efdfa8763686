package annex

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/annex/persistence"
)

// Logger wraps slog.Logger with annex-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithPath adds the index path to every record.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOpen logs how an index handle came into existence.
func (l *Logger) LogOpen(ctx context.Context, path string, created bool, info persistence.Info, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "open failed",
			"path", path,
			"error", err,
		)
	case created:
		l.InfoContext(ctx, "index created",
			"path", path,
		)
	default:
		l.InfoContext(ctx, "index loaded",
			"path", path,
			"size", humanize.Bytes(uint64(info.Bytes)),
			"payload", humanize.Bytes(uint64(info.PayloadBytes)),
			"compression", info.Compression.String(),
		)
	}
}

// LogTrain logs a training call.
func (l *Logger) LogTrain(ctx context.Context, samples, dimension int, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "train failed",
			"samples", samples,
			"dimension", dimension,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "train completed",
		"samples", humanize.Comma(int64(samples)),
		"dimension", dimension,
		"took", took,
	)
}

// LogAdd logs an insert. Duplicate ids are reported at warn level.
func (l *Logger) LogAdd(ctx context.Context, count int, total int64, duplicates int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"count", count,
			"error", err,
		)
		return
	}
	if duplicates > 0 {
		l.WarnContext(ctx, "add stored duplicate ids",
			"count", count,
			"duplicates", duplicates,
		)
	}
	l.DebugContext(ctx, "add completed",
		"count", count,
		"total", humanize.Comma(total),
	)
}

// LogSearch logs a search call.
func (l *Logger) LogSearch(ctx context.Context, k, numQueries, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"queries", numQueries,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"queries", numQueries,
		"results", found,
	)
}

// LogWrite logs a persisted index.
func (l *Logger) LogWrite(ctx context.Context, path string, info persistence.Info, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"path", path,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index written",
		"path", path,
		"size", humanize.Bytes(uint64(info.Bytes)),
		"payload", humanize.Bytes(uint64(info.PayloadBytes)),
		"compression", info.Compression.String(),
		"took", took,
	)
}
