package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/storecraft/backoffice/internal/jobs"
	"github.com/storecraft/backoffice/internal/rbac"
)

// RoleWarmer loads a role's permission keys into the shared cache.
type RoleWarmer interface {
	Warm(ctx context.Context, roleID string) error
}

// WarmRoleJob refreshes the cached permission keys of one role after it changed.
type WarmRoleJob struct {
	Warmer  RoleWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewWarmRoleJob wires dependencies for the warmup handler.
func NewWarmRoleJob(warmer RoleWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmRoleJob {
	return &WarmRoleJob{Warmer: warmer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskWarmRolePermissions tasks.
func (j *WarmRoleJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Warmer == nil {
		return errors.New("rbac warmup: handler not configured")
	}
	var payload WarmRolePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RoleID == "" {
		return fmt.Errorf("rbac warmup: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskWarmRolePermissions)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.String("role_id", payload.RoleID))
	if err = j.Warmer.Warm(ctx, payload.RoleID); err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			// Deleted since enqueue; nothing to warm.
			logger.Info("role gone before warmup")
			return nil
		}
		logger.Error("warm role permissions", slog.Any("error", err))
		return err
	}
	j.Metrics.AddAffected(TaskWarmRolePermissions, 1)
	logger.Debug("role permissions warmed")
	return nil
}

func (j *WarmRoleJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
