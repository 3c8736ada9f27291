package tmrm

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/tmrm/model"
)

// Logger wraps slog.Logger with tmrm-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithSubjectMap adds a subject map field to the logger.
func (l *Logger) WithSubjectMap(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("subject_map", name),
	}
}

// WithProxy adds a proxy field to the logger.
func (l *Logger) WithProxy(id model.ProxyID) *Logger {
	return &Logger{
		Logger: l.Logger.With("proxy", uint64(id)),
	}
}

// LogPropertyAdd logs a failed property write. Successful writes are not
// logged.
func (l *Logger) LogPropertyAdd(ctx context.Context, key model.ProxyID, err error) {
	if err == nil {
		return
	}
	l.ErrorContext(ctx, "property add failed",
		"key", uint64(key),
		"error", err,
	)
}

// LogStorageOpen logs opening a storage backend.
func (l *Logger) LogStorageOpen(ctx context.Context, backend string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "storage open failed",
			"backend", backend,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "storage opened",
			"backend", backend,
		)
	}
}

// LogRegistryLoad logs rebuilding the alias registry from storage.
func (l *Logger) LogRegistryLoad(ctx context.Context, aliases, localNames int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "alias registry load failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "alias registry loaded",
			"aliases", aliases,
			"local_names", localNames,
		)
	}
}

// LogImport logs an ontology import.
func (l *Logger) LogImport(ctx context.Context, document string, bound, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ontology import failed",
			"document", document,
			"bound", bound,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "ontology imported",
			"document", document,
			"bound", bound,
			"skipped", skipped,
		)
	}
}

// LogGraphImport logs a graph document import.
func (l *Logger) LogGraphImport(ctx context.Context, document string, created, added, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "graph import failed",
			"document", document,
			"created", created,
			"added", added,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "graph imported",
			"document", document,
			"created", created,
			"added", added,
			"skipped", skipped,
		)
	}
}

// LogExport logs a subject map export.
func (l *Logger) LogExport(ctx context.Context, proxies int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "export failed",
			"proxies", proxies,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "export completed",
			"proxies", proxies,
		)
	}
}

// LogClose logs closing a subject map.
func (l *Logger) LogClose(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "subject map close failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "subject map closed")
	}
}
