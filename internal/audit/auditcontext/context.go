// Package auditcontext carries request metadata from the transport layer to
// the audit trail.
package auditcontext

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	ipAddressKey
	userAgentKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithClient(ctx context.Context, ipAddress, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ipAddressKey, ipAddress)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func IPAddressFromContext(ctx context.Context) string {
	return stringValue(ctx, ipAddressKey)
}

func UserAgentFromContext(ctx context.Context) string {
	return stringValue(ctx, userAgentKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
