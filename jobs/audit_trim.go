package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
)

// auditExecer is the slice of pgxpool.Pool the trim needs.
type auditExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditTrimJob deletes audit rows older than the configured retention.
type AuditTrimJob struct {
	db     auditExecer
	logger *slog.Logger
}

// NewAuditTrimJob constructs the job.
func NewAuditTrimJob(db auditExecer, logger *slog.Logger) *AuditTrimJob {
	return &AuditTrimJob{db: db, logger: logger}
}

// Handle processes TaskAuditTrim tasks. admin_logs timestamps rows in
// occurred_at; the cutoff compares against that column.
func (j *AuditTrimJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AuditTrimPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		return asynq.SkipRetry
	}
	cutoff := time.Now().Add(-payload.Retention)
	tag, err := j.db.Exec(ctx, `DELETE FROM admin_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return err
	}
	if j.logger != nil {
		j.logger.Info("audit trim completed",
			slog.Int64("deleted", tag.RowsAffected()),
			slog.Time("cutoff", cutoff))
	}
	return nil
}
