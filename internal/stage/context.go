package stage

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	stageNameKey contextKey = "stage_name"
	requestIDKey contextKey = "request_id"
)

// WithSessionID attaches a session identifier to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the session identifier, if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(sessionIDKey).(string)
	return value, ok && value != ""
}

// WithName attaches the executing stage name to the context.
func WithName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, stageNameKey, name)
}

// NameFromContext extracts the executing stage name, if present.
func NameFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(stageNameKey).(string)
	return value, ok && value != ""
}

// WithRequestID attaches a correlation identifier to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier, if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(requestIDKey).(string)
	return value, ok && value != ""
}
