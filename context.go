package tenauth

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type tenantContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine records it
// on audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx for audit
// recording.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithTenant attaches a resolved tenant context to ctx. Middleware calls this
// after [Engine.ResolveTenant]; request handlers read it back with
// [TenantFromContext].
func WithTenant(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// TenantFromContext returns the tenant context attached by [WithTenant], or
// nil when none is present.
func TenantFromContext(ctx context.Context) *TenantContext {
	if ctx == nil {
		return nil
	}
	tc, _ := ctx.Value(tenantContextKey{}).(*TenantContext)
	return tc
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}
