package logtrace

import "context"

type ctxKey int

const (
	correlationIDKey ctxKey = iota
	originKey
)

// CtxWithCorrelationID returns a child context carrying the correlation id
// that every log line emitted with it will include.
func CtxWithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation id or "" when unset.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// CtxWithOrigin tags the context with the component that started the work.
func CtxWithOrigin(ctx context.Context, origin string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, originKey, origin)
}

// OriginFromContext returns the origin or "" when unset.
func OriginFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(originKey).(string); ok {
		return v
	}
	return ""
}
