package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/storecraft/backoffice/internal/jobs"
)

// AuditCleaner deletes audit entries older than retention.
type AuditCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// AuditCleanupJob prunes the audit log on a schedule.
type AuditCleanupJob struct {
	Cleaner AuditCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditCleanupJob wires dependencies for the cleanup handler.
func NewAuditCleanupJob(cleaner AuditCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditCleanupJob {
	return &AuditCleanupJob{Cleaner: cleaner, Logger: logger, Metrics: metrics}
}

// Handle processes TaskAuditCleanup tasks.
func (j *AuditCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Cleaner == nil {
		return errors.New("audit cleanup: handler not configured")
	}
	var payload AuditCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("audit cleanup: bad payload: %w", asynq.SkipRetry)
		}
	}

	tracker := j.Metrics.Track(TaskAuditCleanup)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retention := payload.Retention()
	removed, err := j.Cleaner.Cleanup(ctx, retention)
	if err != nil {
		logger.Error("audit cleanup", slog.Duration("retention", retention), slog.Any("error", err))
		return err
	}
	j.Metrics.AddAffected(TaskAuditCleanup, removed)
	logger.Info("audit cleanup finished", slog.Int64("removed", removed), slog.Duration("retention", retention))
	return nil
}
