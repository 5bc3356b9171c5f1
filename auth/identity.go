package auth

import (
	"context"
	"slices"
	"time"
)

// Method names how a caller was authenticated.
type Method string

const (
	MethodAPIKey    Method = "api_key"
	MethodJWT       Method = "jwt"
	MethodAnonymous Method = "anonymous"
)

// Identity is an authenticated caller.
type Identity struct {
	Principal string
	Roles     []string
	Method    Method

	// Claims holds token claims, or key metadata for API keys.
	Claims map[string]any

	// ExpiresAt is zero when the credential does not expire.
	ExpiresAt time.Time
}

// HasRole reports whether the identity holds role.
func (id *Identity) HasRole(role string) bool {
	return id != nil && slices.Contains(id.Roles, role)
}

// Anonymous returns the identity given to unauthenticated callers when
// anonymous access is allowed.
func Anonymous() *Identity {
	return &Identity{Principal: "anonymous", Method: MethodAnonymous}
}

type identityKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached to ctx, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// PrincipalFromContext returns the principal attached to ctx, or "".
func PrincipalFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.Principal
	}
	return ""
}
