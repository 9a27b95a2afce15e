package shared

import (
	"context"

	"github.com/minerva-sms/minerva/internal/tenancy"
)

type sessionContextKey struct{}

type principalContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p tenancy.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context. The second
// return value is false for unauthenticated requests.
func PrincipalFromContext(ctx context.Context) (tenancy.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(tenancy.Principal)
	return p, ok
}
