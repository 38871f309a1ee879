package rbac

import (
	"fmt"
	"time"

	"github.com/storecraft/backoffice/internal/platform/httpx"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = fmt.Errorf("rbac: %w", httpx.ErrDuplicate)
	// ErrSystemRole indicates an attempt to modify a system-defined role.
	ErrSystemRole = fmt.Errorf("rbac: system roles are read-only: %w", httpx.ErrForbidden)
	// ErrValidation wraps request validation failures.
	ErrValidation = fmt.Errorf("rbac: %w", httpx.ErrValidation)
	// ErrNoTenant rejects management operations from a session without a selected business.
	ErrNoTenant = fmt.Errorf("rbac: a business must be selected: %w", httpx.ErrForbidden)
)

// UserType distinguishes platform administrators from tenant staff.
type UserType string

const (
	UserTypeSuperAdmin  UserType = "super_admin"
	UserTypeTenantStaff UserType = "tenant_staff"
)

// UserStatus is the lifecycle state of an RBAC user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInvited   UserStatus = "invited"
	UserStatusSuspended UserStatus = "suspended"
)

// Role represents a named permission grouping owned by a tenant, or global when TenantID is nil.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TenantID    *string   `json:"tenant_id,omitempty"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission represents an atomic capability. Entries are seeded once and never edited.
type Permission struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// RolePermissionLink ties a permission to a role.
type RolePermissionLink struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
}

// User is a formally provisioned RBAC identity.
type User struct {
	ID        string     `json:"id"`
	AuthUID   string     `json:"auth_uid"`
	Email     string     `json:"email"`
	RoleID    string     `json:"role_id"`
	TenantID  *string    `json:"tenant_id,omitempty"`
	Type      UserType   `json:"type"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Active reports whether the user may resolve permissions.
func (u *User) Active() bool {
	return u != nil && u.Status == UserStatusActive
}

// InTenant reports whether the user's role applies inside tenantID. Global users apply in every
// tenant; tenant users only in their own.
func (u *User) InTenant(tenantID string) bool {
	if u == nil {
		return false
	}
	if u.TenantID == nil {
		return true
	}
	return tenantID != "" && *u.TenantID == tenantID
}

// CheckResult is the outcome of a role permission check.
type CheckResult struct {
	Allowed bool `json:"allowed"`
}

// Actor identifies who performs a management operation and in which tenant.
type Actor struct {
	UID      string
	TenantID string
}

// PermissionGroup groups permissions by category for the role editor.
type PermissionGroup struct {
	Category    string       `json:"category"`
	Label       string       `json:"label"`
	Permissions []Permission `json:"permissions"`
}

func tenantMatches(owner *string, tenantID string) bool {
	return owner == nil || *owner == tenantID
}
