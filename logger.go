package cecontainer

// Logger defines the interface for container logging.
// The container uses structured logging with key-value pairs:
//
//	logger.Info("Started component", "level", "tasks", "key", "ce.queue")
//
// The interface matches the usual structured logging libraries; NewZapLogger
// adapts a *zap.Logger.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, args ...any)
}

// NopLogger discards every record.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Debug(string, ...any) {}

// fieldsLogger injects key-value pairs into every record.
type fieldsLogger struct {
	inner  Logger
	fields []any
}

// WithFields returns a logger adding fields in front of the arguments of
// every call.
func WithFields(inner Logger, fields ...any) Logger {
	if len(fields) == 0 {
		return inner
	}
	if fl, ok := inner.(*fieldsLogger); ok {
		combined := make([]any, 0, len(fl.fields)+len(fields))
		combined = append(combined, fl.fields...)
		combined = append(combined, fields...)
		return &fieldsLogger{inner: fl.inner, fields: combined}
	}
	return &fieldsLogger{inner: inner, fields: fields}
}

func (l *fieldsLogger) combine(args []any) []any {
	if len(args) == 0 {
		return l.fields
	}
	combined := make([]any, 0, len(l.fields)+len(args))
	combined = append(combined, l.fields...)
	return append(combined, args...)
}

func (l *fieldsLogger) Info(msg string, args ...any)  { l.inner.Info(msg, l.combine(args)...) }
func (l *fieldsLogger) Error(msg string, args ...any) { l.inner.Error(msg, l.combine(args)...) }
func (l *fieldsLogger) Warn(msg string, args ...any)  { l.inner.Warn(msg, l.combine(args)...) }
func (l *fieldsLogger) Debug(msg string, args ...any) { l.inner.Debug(msg, l.combine(args)...) }
