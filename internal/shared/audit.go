package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// AuditEntry represents a record stored in admin_logs. The log is append
// only; the reporting UI consumes it read-only.
type AuditEntry struct {
	ActorID     int64
	Action      string
	Entity      string
	EntityID    string
	Description string
	Meta        map[string]any
	At          time.Time
}

// AuditSink receives audit entries for every mutating engine operation.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// auditDB is the slice of pgxpool.Pool the logger needs.
type auditDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger writes records into admin_logs.
type AuditLogger struct {
	db auditDB
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db auditDB) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists the log entry. A zero At is stamped here: the driver would
// otherwise bind it as a valid year-1 timestamp, not NULL.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" {
		return errors.New("audit entry requires action/entity")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	_, err = l.db.Exec(ctx, `INSERT INTO admin_logs (actor_id, action, entity, entity_id, description, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ActorID, entry.Action, entry.Entity, entry.EntityID, entry.Description, metaJSON, entry.At)
	return err
}
