package domain

import "context"

// Role is the caller's role as asserted by the identity provider.
type Role string

// RoleAdmin bypasses row filtering and is the only role allowed to mutate.
const RoleAdmin Role = "admin"

// IsAdmin reports whether r is the admin role.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// PermissionSet lists what a non-admin caller may see. Projects grant
// visibility of the customer that owns them.
type PermissionSet struct {
	Customers []int64 `json:"customers"`
	Projects  []int64 `json:"projects"`
}

// Credentials is the pre-validated identity of a caller. The core only
// authorizes against it and never authenticates.
type Credentials struct {
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"permissions"`
}

type credentialsKey struct{}

// WithCredentials returns a copy of ctx carrying creds.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFrom extracts the credentials stored by WithCredentials.
func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(Credentials)
	return creds, ok
}
