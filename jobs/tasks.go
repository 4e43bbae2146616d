package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskCatalogIntegrity re-runs the grant integrity check off the boot path.
	TaskCatalogIntegrity = "catalog:integrity"
	// TaskSessionPurge clears session keys whose logical expiry has passed but
	// whose redis TTL grace has not.
	TaskSessionPurge = "session:purge"
	// TaskAuditTrim deletes audit rows older than the retention window.
	TaskAuditTrim = "audit:trim"
)

// AuditTrimPayload carries the retention window for an audit trim run.
type AuditTrimPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewCatalogIntegrityTask constructs an Asynq task for the integrity check.
func NewCatalogIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogIntegrity, nil)
}

// NewSessionPurgeTask constructs an Asynq task for the session purge.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil)
}

// NewAuditTrimTask constructs an Asynq task for the audit retention trim.
func NewAuditTrimTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditTrimPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditTrim, data), nil
}
