package shared

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Key type for context values
type ContextKey string

// Context keys for various values
const (
	// UserIDContextKey is the context key for the acting user's ID (int64)
	UserIDContextKey ContextKey = "userID"

	// RoleContextKey is the context key for the acting user's role
	RoleContextKey ContextKey = "role"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"
)

// SetTraceID adds a fresh trace ID to the context.
// This is useful for correlating logs and error responses.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// generateTraceID returns 32 hex characters.
func generateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithIdentity stores the acting user and role in ctx.
func WithIdentity(ctx context.Context, userID int64, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDContextKey, userID)
	return context.WithValue(ctx, RoleContextKey, role)
}

// UserID returns the acting user stored by WithIdentity.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDContextKey).(int64)
	return id, ok && id > 0
}

// Role returns the acting role stored by WithIdentity.
func Role(ctx context.Context) string {
	role, _ := ctx.Value(RoleContextKey).(string)
	return role
}
