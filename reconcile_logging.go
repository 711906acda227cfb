package groups

import "time"

// LogLevel grades a reconcile log event.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Stage names the reconcile step a log event belongs to.
type Stage string

const (
	StageValidate Stage = "validate"
	StageRule     Stage = "rule"
	StageSkip     Stage = "skip"
	StageCommit   Stage = "commit"
	StageAbort    Stage = "abort"
	StageActivity Stage = "activity"
)

// ReconcileLogEvent describes one diagnostic produced while reconciling.
type ReconcileLogEvent struct {
	Level     LogLevel
	Stage     Stage
	Key       string
	Field     string
	Index     int
	ID        string
	Reason    SkipReason
	Engine    string
	Installed int
	Skipped   int
	Duration  time.Duration
	Err       error
}

// ReconcileLogger records reconcile diagnostics.
type ReconcileLogger interface {
	LogReconcile(ReconcileLogEvent)
}

// ReconcileLoggerFunc adapts a function to ReconcileLogger.
type ReconcileLoggerFunc func(ReconcileLogEvent)

// LogReconcile implements ReconcileLogger.
func (f ReconcileLoggerFunc) LogReconcile(event ReconcileLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopReconcileLogger struct{}

func (noopReconcileLogger) LogReconcile(ReconcileLogEvent) {}

// WithLogger attaches a reconcile logger. Skipped entries are logged at warn
// level and aborted commits at error level.
func WithLogger(logger ReconcileLogger) Option {
	return func(cfg *reconcileConfig) {
		if logger == nil {
			cfg.logger = noopReconcileLogger{}
			return
		}
		cfg.logger = logger
	}
}
