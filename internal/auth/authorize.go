package auth

import "sort"

// Principal represents a user with resolved permissions.
type Principal struct {
	User        *User
	Permissions map[Permission]struct{}
}

// NewPrincipal resolves permissions from the user's role.
func NewPrincipal(user *User) Principal {
	p := Principal{User: user, Permissions: map[Permission]struct{}{}}
	if user == nil {
		return p
	}
	for _, perm := range rolePermissions[user.Role] {
		p.Permissions[perm] = struct{}{}
	}
	return p
}

// HasPermission reports whether the principal can execute action identified by key.
func (p Principal) HasPermission(key Permission) bool {
	_, ok := p.Permissions[key]
	return ok
}

// Require returns a *PermissionError when the capability is missing.
func (p Principal) Require(key Permission) error {
	if p.HasPermission(key) {
		return nil
	}
	return &PermissionError{Actor: p.Email(), Permission: key}
}

// Email is the acting user's address, empty for anonymous principals.
func (p Principal) Email() string {
	if p.User == nil {
		return ""
	}
	return p.User.Email
}

// ID is the acting user's id, zero for anonymous principals.
func (p Principal) ID() int64 {
	if p.User == nil {
		return 0
	}
	return p.User.ID
}

// Owns reports whether email belongs to the principal.
func (p Principal) Owns(email string) bool {
	return p.User != nil && NormalizeEmail(email) == NormalizeEmail(p.User.Email)
}

// PermissionList returns the granted keys in sorted order.
func (p Principal) PermissionList() []string {
	out := make([]string, 0, len(p.Permissions))
	for k := range p.Permissions {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
