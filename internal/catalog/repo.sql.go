package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agridesk/agridesk/internal/platform/db"
	"github.com/agridesk/agridesk/internal/shared"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Store.
func NewRepository(pool *pgxpool.Pool) Store {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const roleColumns = `id, key, name, description, is_system_role, priority, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Key, &role.Name, &role.Description, &role.IsSystemRole, &role.Priority, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

func (r *repository) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id=$1`, id))
}

func (r *repository) GetRoleByKey(ctx context.Context, key string) (Role, error) {
	return scanRole(r.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE key=$1`, key))
}

func (r *repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY priority ASC, key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Key, &role.Name, &role.Description, &role.IsSystemRole, &role.Priority, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *repository) CreateRole(ctx context.Context, role Role) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO roles (key, name, description, is_system_role, priority)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		role.Key, role.Name, role.Description, role.IsSystemRole, role.Priority).Scan(&id)
	return id, err
}

func (r *repository) UpdateRole(ctx context.Context, role Role) error {
	tag, err := r.db.Exec(ctx, `UPDATE roles SET name=$2, description=$3, priority=$4, updated_at=NOW() WHERE id=$1`,
		role.ID, role.Name, role.Description, role.Priority)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) CountActorsWithRole(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM admin_actors WHERE role_id=$1`, roleID).Scan(&count)
	return count, err
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, key, name FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.Key, &cat.Name); err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

func (r *repository) EnsureCategory(ctx context.Context, cat Category) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO categories (key, name) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET name=EXCLUDED.name RETURNING id`, cat.Key, cat.Name).Scan(&id)
	return id, err
}

const permissionColumns = `id, key, name, description, category_id, is_critical`

func (r *repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.db.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		perm, err := scanPermissionRow(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func scanPermissionRow(row pgx.Row) (Permission, error) {
	var perm Permission
	var key string
	if err := row.Scan(&perm.ID, &key, &perm.Name, &perm.Description, &perm.CategoryID, &perm.IsCritical); err != nil {
		return Permission{}, err
	}
	perm.Key = PermissionKey(key)
	return perm, nil
}

func (r *repository) GetPermissionByKey(ctx context.Context, key PermissionKey) (Permission, error) {
	perm, err := scanPermissionRow(r.db.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE key=$1`, key.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, err
	}
	return perm, nil
}

func (r *repository) EnsurePermission(ctx context.Context, perm Permission) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO permissions (key, name, description, category_id, is_critical)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key) DO UPDATE SET name=EXCLUDED.name, description=EXCLUDED.description RETURNING id`,
		perm.Key.String(), perm.Name, perm.Description, perm.CategoryID, perm.IsCritical).Scan(&id)
	return id, err
}

const actionColumns = `id, key, name, description, category_id, scope_level, is_dangerous, requires_approval`

func scanActionRow(row pgx.Row) (Action, error) {
	var action Action
	var key, scope string
	if err := row.Scan(&action.ID, &key, &action.Name, &action.Description, &action.CategoryID, &scope, &action.IsDangerous, &action.RequiresApproval); err != nil {
		return Action{}, err
	}
	action.Key = ActionKey(key)
	action.ScopeLevel = ScopeLevel(scope)
	return action, nil
}

func (r *repository) ListActions(ctx context.Context) ([]Action, error) {
	rows, err := r.db.Query(ctx, `SELECT `+actionColumns+` FROM actions ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var actions []Action
	for rows.Next() {
		action, err := scanActionRow(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func (r *repository) GetActionByKey(ctx context.Context, key ActionKey) (Action, error) {
	action, err := scanActionRow(r.db.QueryRow(ctx, `SELECT `+actionColumns+` FROM actions WHERE key=$1`, key.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Action{}, shared.ErrNotFound
		}
		return Action{}, err
	}
	return action, nil
}

func (r *repository) EnsureAction(ctx context.Context, action Action) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO actions (key, name, description, category_id, scope_level, is_dangerous, requires_approval)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (key) DO UPDATE SET name=EXCLUDED.name, description=EXCLUDED.description RETURNING id`,
		action.Key.String(), action.Name, action.Description, action.CategoryID, string(action.ScopeLevel), action.IsDangerous, action.RequiresApproval).Scan(&id)
	return id, err
}

func (r *repository) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.db.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, roleID, permissionID)
	return err
}

func (r *repository) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id=$1 AND permission_id=$2`, roleID, permissionID)
	return err
}

func (r *repository) GrantAction(ctx context.Context, roleID, actionID int64) error {
	_, err := r.db.Exec(ctx, `INSERT INTO role_actions (role_id, action_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, roleID, actionID)
	return err
}

func (r *repository) RevokeAction(ctx context.Context, roleID, actionID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM role_actions WHERE role_id=$1 AND action_id=$2`, roleID, actionID)
	return err
}

func (r *repository) ClearRolePermissions(ctx context.Context, roleID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id=$1`, roleID)
	return err
}

func (r *repository) ClearRoleActions(ctx context.Context, roleID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM role_actions WHERE role_id=$1`, roleID)
	return err
}

func (r *repository) RolePermissionKeys(ctx context.Context, roleID int64) ([]PermissionKey, error) {
	rows, err := r.db.Query(ctx, `SELECT p.key FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id=$1 ORDER BY p.key ASC`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []PermissionKey
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, PermissionKey(key))
	}
	return keys, rows.Err()
}

func (r *repository) RoleActions(ctx context.Context, roleID int64) ([]Action, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.key, a.name, a.description, a.category_id, a.scope_level, a.is_dangerous, a.requires_approval
FROM role_actions ra
JOIN actions a ON a.id = ra.action_id
WHERE ra.role_id=$1 ORDER BY a.key ASC`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var actions []Action
	for rows.Next() {
		action, err := scanActionRow(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func (r *repository) CountOrphanGrants(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT
(SELECT COUNT(*) FROM role_permissions rp LEFT JOIN roles r ON r.id = rp.role_id LEFT JOIN permissions p ON p.id = rp.permission_id WHERE r.id IS NULL OR p.id IS NULL)
+
(SELECT COUNT(*) FROM role_actions ra LEFT JOIN roles r ON r.id = ra.role_id LEFT JOIN actions a ON a.id = ra.action_id WHERE r.id IS NULL OR a.id IS NULL)`).Scan(&count)
	return count, err
}
