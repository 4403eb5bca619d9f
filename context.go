package goRBAC

import "context"

type auditMetadataContextKey struct{}

// WithAuditMetadata attaches key/value pairs to ctx. [Engine.AuthorizeWithContext]
// and [Engine.HasPermissionWithContext] copy them into the Context field of
// the emitted [AuditEvent]. Repeated calls merge, later keys win.
func WithAuditMetadata(ctx context.Context, kv map[string]string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	merged := make(map[string]string, len(kv))
	for k, v := range auditMetadataFromContext(ctx) {
		merged[k] = v
	}
	for k, v := range kv {
		merged[k] = v
	}
	return context.WithValue(ctx, auditMetadataContextKey{}, merged)
}

func auditMetadataFromContext(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}

	md, _ := ctx.Value(auditMetadataContextKey{}).(map[string]string)
	return md
}
