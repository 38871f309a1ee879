package business

import "github.com/storecraft/backoffice/internal/perm"

// StaffResolver answers permission checks from the staff permission set of a loaded context.
// It never performs I/O.
type StaffResolver struct{}

// HasPermission reports whether the staff set holds key.
func (r StaffResolver) HasPermission(c *Context, key string) bool {
	return r.Satisfies(c, perm.HasOne(key))
}

// HasAnyPermission reports whether the staff set holds at least one of keys.
func (r StaffResolver) HasAnyPermission(c *Context, keys []string) bool {
	return r.Satisfies(c, perm.HasAny(keys...))
}

// HasAllPermissions reports whether the staff set holds every key.
func (r StaffResolver) HasAllPermissions(c *Context, keys []string) bool {
	return r.Satisfies(c, perm.HasAll(keys...))
}

// Satisfies evaluates q; every query is false without a loaded business.
func (StaffResolver) Satisfies(c *Context, q perm.Query) bool {
	if !c.Loaded() {
		return false
	}
	return c.StaffPermissions.Satisfies(q)
}
