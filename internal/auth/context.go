package auth

import "context"

type identityKey struct{}

// Identity is the authenticated caller.
type Identity struct {
	TenantID string
	Role     Role
	Subject  string
}

// WithIdentity stores the caller in ctx.
func WithIdentity(ctx context.Context, tenantID string, role Role, subject string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{TenantID: tenantID, Role: role, Subject: subject})
}

// IdentityFromContext returns the caller stored by the middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// TenantIDFromContext extracts tenant id from context.
func TenantIDFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.TenantID
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	identity, _ := IdentityFromContext(ctx)
	return identity.Role
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.Subject
}
