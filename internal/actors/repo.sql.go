package actors

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agridesk/agridesk/internal/shared"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs a PostgreSQL backed Store.
func NewRepository(pool *pgxpool.Pool) Store {
	return &repository{db: pool}
}

const actorColumns = `id, email, name, password_hash, role_id, is_active, scope_type, scope_values, created_at, updated_at`

func scanActor(row pgx.Row) (AdminActor, error) {
	var actor AdminActor
	var scopeType string
	var scopeValues []string
	err := row.Scan(&actor.ID, &actor.Email, &actor.Name, &actor.PasswordHash, &actor.RoleID,
		&actor.IsActive, &scopeType, &scopeValues, &actor.CreatedAt, &actor.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AdminActor{}, shared.ErrNotFound
		}
		return AdminActor{}, err
	}
	actor.Scope = Scope{Type: ScopeType(scopeType), Values: scopeValues}
	return actor, nil
}

func (r *repository) GetActor(ctx context.Context, id int64) (AdminActor, error) {
	return scanActor(r.db.QueryRow(ctx, `SELECT `+actorColumns+` FROM admin_actors WHERE id=$1`, id))
}

func (r *repository) GetActorByEmail(ctx context.Context, email string) (AdminActor, error) {
	return scanActor(r.db.QueryRow(ctx, `SELECT `+actorColumns+` FROM admin_actors WHERE email=$1`, email))
}

func (r *repository) ListActors(ctx context.Context) ([]AdminActor, error) {
	rows, err := r.db.Query(ctx, `SELECT `+actorColumns+` FROM admin_actors ORDER BY email ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AdminActor
	for rows.Next() {
		actor, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, actor)
	}
	return out, rows.Err()
}

func (r *repository) ListActorIDsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM admin_actors WHERE role_id=$1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) CreateActor(ctx context.Context, actor AdminActor) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO admin_actors (email, name, password_hash, role_id, is_active, scope_type, scope_values)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		actor.Email, actor.Name, actor.PasswordHash, actor.RoleID, actor.IsActive,
		string(actor.Scope.Type), actor.Scope.Values).Scan(&id)
	return id, err
}

func (r *repository) SetRole(ctx context.Context, actorID, roleID int64) error {
	return r.exec(ctx, `UPDATE admin_actors SET role_id=$2, updated_at=NOW() WHERE id=$1`, actorID, roleID)
}

func (r *repository) SetActive(ctx context.Context, actorID int64, active bool) error {
	return r.exec(ctx, `UPDATE admin_actors SET is_active=$2, updated_at=NOW() WHERE id=$1`, actorID, active)
}

func (r *repository) SetScope(ctx context.Context, actorID int64, scope Scope) error {
	return r.exec(ctx, `UPDATE admin_actors SET scope_type=$2, scope_values=$3, updated_at=NOW() WHERE id=$1`,
		actorID, string(scope.Type), scope.Values)
}

func (r *repository) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListFarmAssignments(ctx context.Context, actorID int64) ([]FarmAssignment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, actor_id, farm_id, granted_by, granted_at
FROM farm_assignments WHERE actor_id=$1 ORDER BY granted_at ASC`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FarmAssignment
	for rows.Next() {
		var fa FarmAssignment
		if err := rows.Scan(&fa.ID, &fa.ActorID, &fa.FarmID, &fa.GrantedBy, &fa.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, fa)
	}
	return out, rows.Err()
}

func (r *repository) AddFarmAssignment(ctx context.Context, assignment FarmAssignment) error {
	_, err := r.db.Exec(ctx, `INSERT INTO farm_assignments (actor_id, farm_id, granted_by)
VALUES ($1, $2, $3) ON CONFLICT (actor_id, farm_id) DO NOTHING`,
		assignment.ActorID, assignment.FarmID, assignment.GrantedBy)
	return err
}

func (r *repository) RemoveFarmAssignment(ctx context.Context, actorID int64, farmID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM farm_assignments WHERE actor_id=$1 AND farm_id=$2`, actorID, farmID)
	return err
}
