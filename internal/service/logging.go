package service

import (
	"context"
	"log/slog"

	"leavemgmt/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(base)
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// logOutcome logs a failed operation with its error kind, or msg at info level on success.
// Caller mistakes are warnings; only unexpected errors are logged as errors.
func logOutcome(ctx context.Context, logger *slog.Logger, err error, msg string, attrs ...any) {
	if err != nil {
		kind := ErrorKind(err)
		level := slog.LevelWarn
		if kind == "unexpected" {
			level = slog.LevelError
		}
		logger.Log(ctx, level, msg+" failed", "error", err, "error_kind", kind)
		return
	}
	logger.InfoContext(ctx, msg+" succeeded", attrs...)
}
