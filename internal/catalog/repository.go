package catalog

import "context"

// Store abstracts persistence for the catalog and the grant join tables.
// The pgx implementation lives in repo.sql.go; tests use an in-memory store.
type Store interface {
	// WithTx runs fn against a transactional view of the store. The grant
	// sync operations depend on this for atomic replace semantics.
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error

	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByKey(ctx context.Context, key string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, role Role) (int64, error)
	UpdateRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id int64) error
	CountActorsWithRole(ctx context.Context, roleID int64) (int64, error)

	ListCategories(ctx context.Context) ([]Category, error)
	EnsureCategory(ctx context.Context, cat Category) (int64, error)

	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermissionByKey(ctx context.Context, key PermissionKey) (Permission, error)
	EnsurePermission(ctx context.Context, perm Permission) (int64, error)

	ListActions(ctx context.Context) ([]Action, error)
	GetActionByKey(ctx context.Context, key ActionKey) (Action, error)
	EnsureAction(ctx context.Context, action Action) (int64, error)

	// GrantPermission and GrantAction are idempotent: re-granting an
	// existing pair succeeds without error.
	GrantPermission(ctx context.Context, roleID, permissionID int64) error
	RevokePermission(ctx context.Context, roleID, permissionID int64) error
	GrantAction(ctx context.Context, roleID, actionID int64) error
	RevokeAction(ctx context.Context, roleID, actionID int64) error
	ClearRolePermissions(ctx context.Context, roleID int64) error
	ClearRoleActions(ctx context.Context, roleID int64) error

	RolePermissionKeys(ctx context.Context, roleID int64) ([]PermissionKey, error)
	RoleActions(ctx context.Context, roleID int64) ([]Action, error)

	// CountOrphanGrants reports join rows whose role, permission or action
	// no longer exists. Non-zero fails the startup integrity check.
	CountOrphanGrants(ctx context.Context) (int64, error)
}
