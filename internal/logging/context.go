package logging

import (
	"context"

	"go.uber.org/zap"
)

// Context key types
type projectCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)

	if projectID := ProjectIDFromContext(ctx); projectID != "" {
		fields = append(fields, zap.String("project.id", projectID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// WithProjectID adds the active project id to context.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectCtxKey{}, projectID)
}

// ProjectIDFromContext extracts the project id from context.
func ProjectIDFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(projectCtxKey{}).(string); ok {
		return p
	}
	return ""
}

// WithRequestID adds a request id to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request id from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
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
