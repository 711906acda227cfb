// Package logadapter routes reconcile diagnostics into zap or slog loggers.
package logadapter

import (
	"context"
	"log/slog"

	groups "github.com/goliatone/go-groups"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const message = "group reconcile"

// Zap returns a ReconcileLogger writing to logger. A nil logger discards.
func Zap(logger *zap.Logger) groups.ReconcileLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return groups.ReconcileLoggerFunc(func(event groups.ReconcileLogEvent) {
		if ce := logger.Check(zapLevel(event.Level), message); ce != nil {
			ce.Write(zapFields(event)...)
		}
	})
}

// Slog returns a ReconcileLogger writing to logger, or slog.Default when
// logger is nil.
func Slog(logger *slog.Logger) groups.ReconcileLogger {
	return groups.ReconcileLoggerFunc(func(event groups.ReconcileLogEvent) {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		l.LogAttrs(context.Background(), slogLevel(event.Level), message, slogAttrs(event)...)
	})
}

func zapLevel(level groups.LogLevel) zapcore.Level {
	switch level {
	case groups.LogLevelDebug:
		return zapcore.DebugLevel
	case groups.LogLevelWarn:
		return zapcore.WarnLevel
	case groups.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func slogLevel(level groups.LogLevel) slog.Level {
	switch level {
	case groups.LogLevelDebug:
		return slog.LevelDebug
	case groups.LogLevelWarn:
		return slog.LevelWarn
	case groups.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Fields that only apply to some stages are omitted when empty.
func zapFields(event groups.ReconcileLogEvent) []zap.Field {
	fields := []zap.Field{
		zap.String("stage", string(event.Stage)),
		zap.String("key", event.Key),
	}
	if event.Field != "" {
		fields = append(fields, zap.String("field", event.Field))
	}
	if event.Stage == groups.StageSkip {
		fields = append(fields,
			zap.Int("index", event.Index),
			zap.String("id", event.ID),
			zap.String("reason", string(event.Reason)),
		)
	}
	if event.Engine != "" {
		fields = append(fields, zap.String("engine", event.Engine))
	}
	if event.Stage == groups.StageCommit || event.Stage == groups.StageAbort {
		fields = append(fields,
			zap.Int("installed", event.Installed),
			zap.Int("skipped", event.Skipped),
			zap.Duration("duration", event.Duration),
		)
	}
	if event.Err != nil {
		fields = append(fields, zap.Error(event.Err))
	}
	return fields
}

func slogAttrs(event groups.ReconcileLogEvent) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("stage", string(event.Stage)),
		slog.String("key", event.Key),
	}
	if event.Field != "" {
		attrs = append(attrs, slog.String("field", event.Field))
	}
	if event.Stage == groups.StageSkip {
		attrs = append(attrs,
			slog.Int("index", event.Index),
			slog.String("id", event.ID),
			slog.String("reason", string(event.Reason)),
		)
	}
	if event.Engine != "" {
		attrs = append(attrs, slog.String("engine", event.Engine))
	}
	if event.Stage == groups.StageCommit || event.Stage == groups.StageAbort {
		attrs = append(attrs,
			slog.Int("installed", event.Installed),
			slog.Int("skipped", event.Skipped),
			slog.Duration("duration", event.Duration),
		)
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	return attrs
}
