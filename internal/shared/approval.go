package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ApprovalAction enumerates approval log actions.
type ApprovalAction string

const (
	// ApprovalSubmit marks a submit action.
	ApprovalSubmit ApprovalAction = "SUBMIT"
	// ApprovalApprove marks an approve action.
	ApprovalApprove ApprovalAction = "APPROVE"
	// ApprovalReject marks a reject action.
	ApprovalReject ApprovalAction = "REJECT"
)

// ApprovalLog represents a single approval record. Actions flagged
// requires_approval produce a SUBMIT row when the engine returns
// allow-pending-approval; the application layer appends APPROVE/REJECT.
type ApprovalLog struct {
	ID        int64
	ActionKey string
	RefID     uuid.UUID
	ActorID   int64
	Resource  string
	Action    ApprovalAction
	Note      string
	At        time.Time
}

// approvalDB is the slice of pgxpool.Pool the recorder needs.
type approvalDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ApprovalRecorder persists approval history.
type ApprovalRecorder struct {
	db     approvalDB
	logger *slog.Logger
}

// NewApprovalRecorder constructs ApprovalRecorder.
func NewApprovalRecorder(db approvalDB, logger *slog.Logger) *ApprovalRecorder {
	return &ApprovalRecorder{db: db, logger: logger}
}

// Record writes an approval entry to the database.
func (r *ApprovalRecorder) Record(ctx context.Context, log ApprovalLog) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	if log.ActionKey == "" {
		return errors.New("approval action key required")
	}
	if log.ActorID == 0 {
		return errors.New("approval actor required")
	}
	if log.Action == "" {
		return errors.New("approval action required")
	}
	if log.RefID == uuid.Nil {
		log.RefID = uuid.New()
	}
	// A zero At binds as a year-1 timestamp, not NULL; stamp it here.
	if log.At.IsZero() {
		log.At = time.Now()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO approvals (action_key, ref_id, actor_id, resource, action, note, at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ActionKey, log.RefID, log.ActorID, log.Resource, string(log.Action), log.Note, log.At)
	if err != nil {
		r.logger.Error("record approval", slog.Any("error", err))
		return err
	}
	return nil
}

// List returns approvals for an action key and resource, oldest first.
func (r *ApprovalRecorder) List(ctx context.Context, actionKey, resource string) ([]ApprovalLog, error) {
	if r == nil {
		return nil, errors.New("approval recorder not initialised")
	}
	rows, err := r.db.Query(ctx, `SELECT id, action_key, ref_id, actor_id, resource, action, note, at
FROM approvals WHERE action_key=$1 AND resource=$2 ORDER BY at ASC`, actionKey, resource)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ApprovalLog
	for rows.Next() {
		var l ApprovalLog
		var action string
		if err := rows.Scan(&l.ID, &l.ActionKey, &l.RefID, &l.ActorID, &l.Resource, &action, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Action = ApprovalAction(action)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// EnsureSubmit records a SUBMIT row unless one already exists for the pair.
func (r *ApprovalRecorder) EnsureSubmit(ctx context.Context, actionKey, resource string, actorID int64, note string) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT true FROM approvals WHERE action_key=$1 AND resource=$2 AND actor_id=$3 AND action='SUBMIT' LIMIT 1`,
		actionKey, resource, actorID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.Record(ctx, ApprovalLog{ActionKey: actionKey, Resource: resource, ActorID: actorID, Action: ApprovalSubmit, Note: note})
		}
		return err
	}
	return nil
}
