package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWarmRolePermissions reloads one role's permission keys into the cache.
	TaskWarmRolePermissions = "rbac:warm_role"
	// TaskAuditCleanup prunes audit entries past the retention window.
	TaskAuditCleanup = "audit:cleanup"
)

// DefaultAuditRetention is used when a cleanup payload carries no retention.
const DefaultAuditRetention = 180 * 24 * time.Hour

// WarmRolePayload names the role to warm.
type WarmRolePayload struct {
	RoleID string `json:"role_id"`
}

// AuditCleanupPayload configures one cleanup run.
type AuditCleanupPayload struct {
	RetentionDays int `json:"retention_days"`
}

// Retention returns the configured window or DefaultAuditRetention.
func (p AuditCleanupPayload) Retention() time.Duration {
	if p.RetentionDays <= 0 {
		return DefaultAuditRetention
	}
	return time.Duration(p.RetentionDays) * 24 * time.Hour
}

// NewWarmRoleTask constructs a role warmup task.
func NewWarmRoleTask(roleID string) (*asynq.Task, error) {
	if roleID == "" {
		return nil, errors.New("jobs: role id required")
	}
	data, err := json.Marshal(WarmRolePayload{RoleID: roleID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarmRolePermissions, data), nil
}

// NewAuditCleanupTask constructs an audit cleanup task.
func NewAuditCleanupTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditCleanupPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}
