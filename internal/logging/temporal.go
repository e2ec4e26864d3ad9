// internal/logging/temporal.go
package logging

import (
	"fmt"

	tlog "go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// TemporalLogger implements the Temporal SDK logger on top of Zap.
type TemporalLogger struct {
	zap *zap.Logger
}

var (
	_ tlog.Logger          = (*TemporalLogger)(nil)
	_ tlog.WithLogger      = (*TemporalLogger)(nil)
	_ tlog.WithSkipCallers = (*TemporalLogger)(nil)
)

// NewTemporalLogger adapts l for client.Options.Logger.
func NewTemporalLogger(l *Logger) *TemporalLogger {
	if l == nil {
		l = NewNop()
	}
	return &TemporalLogger{zap: l.zap.Named("temporal")}
}

func (t *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	t.zap.Debug(msg, keyvalFields(keyvals)...)
}

func (t *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	t.zap.Info(msg, keyvalFields(keyvals)...)
}

func (t *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	t.zap.Warn(msg, keyvalFields(keyvals)...)
}

func (t *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	t.zap.Error(msg, keyvalFields(keyvals)...)
}

// With returns a logger that always carries keyvals.
func (t *TemporalLogger) With(keyvals ...interface{}) tlog.Logger {
	return &TemporalLogger{zap: t.zap.With(keyvalFields(keyvals)...)}
}

// WithCallerSkip lets the SDK point caller info past its own wrappers.
func (t *TemporalLogger) WithCallerSkip(depth int) tlog.Logger {
	return &TemporalLogger{zap: t.zap.WithOptions(zap.AddCallerSkip(depth))}
}

// keyvalFields pairs alternating keys and values. A dangling key is kept
// under "extra" so nothing is silently lost.
func keyvalFields(keyvals []interface{}) []zap.Field {
	if len(keyvals) == 0 {
		return nil
	}
	fields := make([]zap.Field, 0, (len(keyvals)+1)/2)
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 >= len(keyvals) {
			fields = append(fields, zap.Any("extra", keyvals[i]))
			break
		}
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		if err, isErr := keyvals[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}
	return fields
}
