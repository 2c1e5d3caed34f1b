package taskrouter

import "context"

// contextKey avoids collisions with keys set by unrelated packages
// sharing the same context.Context chain.
type contextKey string

const (
	ownerIDKey contextKey = "taskrouter.ownerId"
	traceIDKey contextKey = "taskrouter.traceId"
)

// WithOwnerID attaches an authenticated owner ID to ctx. Callers MUST
// only call this from trusted authentication middleware, never from a
// handler acting on user-controlled input: an owner ID is the entire
// isolation boundary between tenants in this subsystem.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// OwnerIDFromContext extracts the authenticated owner ID, returning ok
// false if the context carries none.
func OwnerIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ownerIDKey).(string)
	return v, ok && v != ""
}

// WithTraceID attaches a correlation ID used in error responses and logs.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}
