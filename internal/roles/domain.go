package roles

import (
	"context"

	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/rbac"
)

// SessionRefresher reloads the permission state of a live access session.
type SessionRefresher interface {
	Refresh(ctx context.Context, id string) (*access.Session, error)
}

// WarmupEnqueuer schedules a background reload of a role's permission cache.
type WarmupEnqueuer interface {
	EnqueueRoleWarmup(ctx context.Context, roleID string) error
}

// RoleDetail is a role with the ids of its linked permissions.
type RoleDetail struct {
	rbac.Role
	PermissionIDs []string `json:"permission_ids"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}
