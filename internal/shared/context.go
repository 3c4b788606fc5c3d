package shared

import "context"

// Principal describes the authenticated actor as seen by the security core.
// It is owned by the calling layer and read-only here.
type Principal struct {
	ID    string
	Roles []string
	// GrantID references an active elevated-access grant, when one exists.
	GrantID string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
