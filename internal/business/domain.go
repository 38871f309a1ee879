// Package business models the per-session business context and the staff permissions it carries.
package business

import (
	"errors"

	"github.com/storecraft/backoffice/internal/perm"
)

// RoleOwner is the business-level role of the account holder.
const RoleOwner = "owner"

var (
	// ErrBusinessNotFound indicates the requested business does not exist.
	ErrBusinessNotFound = errors.New("business: not found")
	// ErrNoMembership indicates the identity neither owns nor belongs to the business.
	ErrNoMembership = errors.New("business: no membership")
)

// Plan describes the subscription attached to a business.
type Plan struct {
	Type string `json:"type"`
}

// Context is the business state resolved once per session.
type Context struct {
	BusinessID       string   `json:"business_id"`
	BusinessName     string   `json:"business_name"`
	Role             string   `json:"role"`
	Plan             Plan     `json:"plan"`
	StaffPermissions perm.Set `json:"-"`
}

// IsOwner reports whether the session acts as the business owner.
func (c *Context) IsOwner() bool {
	return c != nil && c.Role == RoleOwner
}

// Loaded reports whether the context is bound to a business.
func (c *Context) Loaded() bool {
	return c != nil && c.BusinessID != ""
}

// Business is a stored business record.
type Business struct {
	ID       string
	Name     string
	OwnerUID string
	PlanType string
}

// Member is a staff membership row.
type Member struct {
	BusinessID  string
	UID         string
	Email       string
	Role        string
	Permissions []string
	Status      string
}

// Summary is a business the identity can switch to.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}
