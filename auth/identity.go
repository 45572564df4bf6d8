package auth

import (
	"slices"
	"time"
)

// AuthMethod indicates how the caller was identified.
type AuthMethod string

const (
	AuthMethodNone      AuthMethod = "none"
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAnonymous AuthMethod = "anonymous"
	AuthMethodInternal  AuthMethod = "internal"
)

// Identity is the principal on whose behalf a message is dispatched.
type Identity struct {
	// Principal is the unique identifier (e.g., user ID, service name).
	Principal string

	// TenantID is the tenant this identity belongs to.
	TenantID string

	// Roles are the roles assigned to this identity.
	Roles []string

	// Method indicates how the identity was established.
	Method AuthMethod

	// Claims contains the raw token claims, if any.
	Claims map[string]any

	// ExpiresAt is when this identity stops being valid. Zero means never.
	ExpiresAt time.Time

	// IssuedAt is when this identity was created.
	IssuedAt time.Time
}

// HasRole reports whether the identity has role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// ExpiredAt reports whether the identity has expired at now.
func (id *Identity) ExpiredAt(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}

// IsAnonymous reports whether this is an anonymous identity.
func (id *Identity) IsAnonymous() bool {
	return id.Method == AuthMethodAnonymous || id.Principal == ""
}

// AnonymousIdentity creates an anonymous identity.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal: "anonymous",
		Method:    AuthMethodAnonymous,
		Claims:    make(map[string]any),
	}
}

// ServiceIdentity creates an identity for in-process callers such as
// schedulers, with the given roles.
func ServiceIdentity(name string, roles ...string) *Identity {
	return &Identity{
		Principal: name,
		Roles:     roles,
		Method:    AuthMethodInternal,
		Claims:    make(map[string]any),
	}
}
