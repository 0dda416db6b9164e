package auth

import "context"

// Principal is the authenticated caller attached to a request context after
// the bearer token has been validated and the user's role and permissions
// resolved from the database.
type Principal struct {
	UserID      string
	Username    string
	Role        string
	Permissions []string
}

// HasPermission reports whether the principal carries the named permission.
func (p Principal) HasPermission(name string) bool {
	for _, have := range p.Permissions {
		if have == name {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithPrincipal returns a child context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFrom extracts the principal from ctx, if present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
