// internal/logging/context.go
package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := SessionIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("session.id", id))
	}
	if id := FindingIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("finding.id", id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

type sessionCtxKey struct{}
type findingCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidateID reports whether id is safe to carry as a correlation field.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("id cannot be empty")
	case len(id) > maxIDLen:
		return fmt.Errorf("id exceeds max length %d", maxIDLen)
	case !idPattern.MatchString(id):
		return fmt.Errorf("id %q contains invalid characters", id)
	}
	return nil
}

// WithSessionID adds the review session ID to ctx. Invalid IDs are dropped so
// a bad request never poisons log output.
func WithSessionID(ctx context.Context, id string) context.Context {
	if ValidateID(id) != nil {
		return ctx
	}
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext extracts the session ID from ctx.
func SessionIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sessionCtxKey{}).(string)
	return s
}

// WithFindingID adds a finding ID to ctx.
func WithFindingID(ctx context.Context, id string) context.Context {
	if ValidateID(id) != nil {
		return ctx
	}
	return context.WithValue(ctx, findingCtxKey{}, id)
}

// FindingIDFromContext extracts the finding ID from ctx.
func FindingIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(findingCtxKey{}).(string)
	return s
}

// WithRequestID adds an HTTP or MCP request ID to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ValidateID(id) != nil {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext extracts the request ID from ctx.
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestCtxKey{}).(string)
	return s
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
