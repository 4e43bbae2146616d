package shared

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordingDB struct {
	sql  string
	args []any

	rowErr error
}

func (db *recordingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.sql = sql
	db.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (db *recordingDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (db *recordingDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{err: db.rowErr}
}

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(dest ...any) error { return r.err }

func TestAuditRecordStampsTimestamp(t *testing.T) {
	db := &recordingDB{}
	logger := NewAuditLogger(db)

	require.NoError(t, logger.Record(context.Background(), AuditEntry{
		ActorID: 1,
		Action:  "role.create",
		Entity:  "role",
	}))

	require.Len(t, db.args, 7)
	at, ok := db.args[6].(time.Time)
	require.True(t, ok)
	// The driver binds a zero time as year 1, not NULL; Record must stamp it.
	require.False(t, at.IsZero())
	require.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestAuditRecordKeepsExplicitTimestamp(t *testing.T) {
	db := &recordingDB{}
	logger := NewAuditLogger(db)
	explicit := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, logger.Record(context.Background(), AuditEntry{
		Action: "role.create",
		Entity: "role",
		At:     explicit,
	}))

	require.Equal(t, explicit, db.args[6])
}

func TestAuditRecordRequiresActionAndEntity(t *testing.T) {
	logger := NewAuditLogger(&recordingDB{})

	require.Error(t, logger.Record(context.Background(), AuditEntry{Entity: "role"}))
	require.Error(t, logger.Record(context.Background(), AuditEntry{Action: "role.create"}))
}

func TestApprovalRecordStampsTimestampAndRef(t *testing.T) {
	db := &recordingDB{}
	recorder := NewApprovalRecorder(db, nil)

	require.NoError(t, recorder.Record(context.Background(), ApprovalLog{
		ActionKey: "budget.approve",
		ActorID:   1,
		Resource:  "F1",
		Action:    ApprovalSubmit,
	}))

	require.Len(t, db.args, 7)
	require.NotEqual(t, uuid.Nil, db.args[1])
	at, ok := db.args[6].(time.Time)
	require.True(t, ok)
	require.False(t, at.IsZero())
	require.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestEnsureSubmitRecordsWhenMissing(t *testing.T) {
	db := &recordingDB{rowErr: pgx.ErrNoRows}
	recorder := NewApprovalRecorder(db, nil)

	require.NoError(t, recorder.EnsureSubmit(context.Background(), "budget.approve", "F1", 1, "pending"))
	require.Contains(t, db.sql, "INSERT INTO approvals")

	// An existing SUBMIT row short-circuits without a second insert.
	db.sql = ""
	db.rowErr = nil
	require.NoError(t, recorder.EnsureSubmit(context.Background(), "budget.approve", "F1", 1, "pending"))
	require.Empty(t, db.sql)
}
