package domain

import "context"

// Identity is the authenticated caller attached to a request. It is rebuilt
// from the store on every request so role changes take effect immediately.
type Identity struct {
	Email    string
	FullName string
	Role     Role
	Status   AccountStatus
}

// IsAdmin reports whether the identity carries the ADMIN role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// IdentityFromAccount projects the fields of an account that downstream
// authorization needs.
func IdentityFromAccount(a *Account) Identity {
	return Identity{
		Email:    a.Email,
		FullName: a.FullName,
		Role:     a.Role,
		Status:   a.Status,
	}
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
