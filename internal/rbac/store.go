package rbac

import "context"

// Store is the persistence contract for RBAC records. Writes replace whole records.
type Store interface {
	ListRoles(ctx context.Context, tenantID string) ([]Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id string) error

	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error)
	UpsertPermission(ctx context.Context, p Permission) (Permission, error)

	RolePermissionIDs(ctx context.Context, roleID string) ([]string, error)
	ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error

	GetUser(ctx context.Context, id string) (User, error)
	FindUserByUID(ctx context.Context, uid string) (User, error)
	FindUsersByEmail(ctx context.Context, email string) ([]User, error)
	ListUsers(ctx context.Context, tenantID string, limit, offset int) ([]User, int, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
}
