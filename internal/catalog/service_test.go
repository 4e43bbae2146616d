package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agridesk/agridesk/internal/shared"
)

type recordingInvalidator struct {
	actors []int64
	roles  []int64
}

func (r *recordingInvalidator) InvalidateActor(actorID int64) { r.actors = append(r.actors, actorID) }
func (r *recordingInvalidator) InvalidateRole(roleID int64)   { r.roles = append(r.roles, roleID) }

func newTestService(store *memStore) (*Service, *recordingInvalidator) {
	inv := &recordingInvalidator{}
	return NewService(store, nil, inv, nil), inv
}

func seedRole(t *testing.T, store *memStore, key string, system bool) Role {
	t.Helper()
	id, err := store.CreateRole(context.Background(), Role{Key: key, Name: key, IsSystemRole: system, Priority: 10})
	require.NoError(t, err)
	role, err := store.GetRole(context.Background(), id)
	require.NoError(t, err)
	return role
}

func seedPermission(t *testing.T, store *memStore, key PermissionKey) Permission {
	t.Helper()
	id, err := store.EnsurePermission(context.Background(), Permission{Key: key, Name: string(key)})
	require.NoError(t, err)
	return Permission{ID: id, Key: key}
}

func seedAction(t *testing.T, store *memStore, key ActionKey, level ScopeLevel, dangerous, approval bool) Action {
	t.Helper()
	action := Action{Key: key, Name: string(key), ScopeLevel: level, IsDangerous: dangerous, RequiresApproval: approval}
	id, err := store.EnsureAction(context.Background(), action)
	require.NoError(t, err)
	action.ID = id
	return action
}

func TestCreateRoleDerivesDisplayName(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	role, err := svc.CreateRole(context.Background(), "farm_manager", "", "runs farms", 20)
	require.NoError(t, err)
	require.Equal(t, "Farm Manager", role.Name)
	require.False(t, role.IsSystemRole)
}

func TestUpdateRoleSystemRoleImmutable(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	role := seedRole(t, store, SuperAdminRoleKey, true)

	_, err := svc.UpdateRole(context.Background(), role.ID, "Renamed", "", role.Priority)
	require.ErrorIs(t, err, shared.ErrImmutableResource)

	_, err = svc.UpdateRole(context.Background(), role.ID, "", "new description", role.Priority)
	require.NoError(t, err)

	got, err := store.GetRole(context.Background(), role.ID)
	require.NoError(t, err)
	require.Equal(t, role.Name, got.Name)
	require.Equal(t, "new description", got.Description)
}

func TestDeleteRoleSystemRoleRejected(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	role := seedRole(t, store, SuperAdminRoleKey, true)

	err := svc.DeleteRole(context.Background(), role.ID)
	require.ErrorIs(t, err, shared.ErrImmutableResource)
}

func TestDeleteRoleInUseRejected(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	role := seedRole(t, store, "viewer", false)
	perm := seedPermission(t, store, "farms.view")
	require.NoError(t, store.GrantPermission(context.Background(), role.ID, perm.ID))
	store.actorCounts[role.ID] = 2

	err := svc.DeleteRole(context.Background(), role.ID)
	require.ErrorIs(t, err, shared.ErrResourceInUse)

	// Role and grants survive the rejected delete.
	_, err = store.GetRole(context.Background(), role.ID)
	require.NoError(t, err)
	keys, err := store.RolePermissionKeys(context.Background(), role.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestDeleteRoleClearsGrants(t *testing.T) {
	store := newMemStore()
	svc, inv := newTestService(store)
	role := seedRole(t, store, "viewer", false)
	perm := seedPermission(t, store, "farms.view")
	require.NoError(t, store.GrantPermission(context.Background(), role.ID, perm.ID))

	require.NoError(t, svc.DeleteRole(context.Background(), role.ID))

	_, err := store.GetRole(context.Background(), role.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	keys, err := store.RolePermissionKeys(context.Background(), role.ID)
	require.NoError(t, err)
	require.Empty(t, keys)
	require.Contains(t, inv.roles, role.ID)
}

func TestGrantPermissionIdempotent(t *testing.T) {
	store := newMemStore()
	svc, inv := newTestService(store)
	role := seedRole(t, store, "viewer", false)
	seedPermission(t, store, "farms.view")

	require.NoError(t, svc.GrantPermissionToRole(context.Background(), role.ID, "farms.view"))
	require.NoError(t, svc.GrantPermissionToRole(context.Background(), role.ID, "farms.view"))

	keys, err := svc.RolePermissionKeys(context.Background(), role.ID)
	require.NoError(t, err)
	require.Equal(t, []PermissionKey{"farms.view"}, keys)
	require.Len(t, inv.roles, 2)
}

func TestGrantUnknownPermission(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	role := seedRole(t, store, "viewer", false)

	err := svc.GrantPermissionToRole(context.Background(), role.ID, "nope.missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSyncRolePermissionsReplacesSet(t *testing.T) {
	store := newMemStore()
	svc, inv := newTestService(store)
	role := seedRole(t, store, "editor", false)
	seedPermission(t, store, "farms.view")
	seedPermission(t, store, "farms.edit")
	seedPermission(t, store, "finance.view")
	require.NoError(t, svc.GrantPermissionToRole(context.Background(), role.ID, "finance.view"))

	err := svc.SyncRolePermissions(context.Background(), role.ID, []PermissionKey{"farms.view", "farms.edit"})
	require.NoError(t, err)

	keys, err := svc.RolePermissionKeys(context.Background(), role.ID)
	require.NoError(t, err)
	require.Equal(t, []PermissionKey{"farms.edit", "farms.view"}, keys)
	require.Contains(t, inv.roles, role.ID)
}

func TestSyncRolePermissionsUnknownKeyLeavesSetIntact(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	role := seedRole(t, store, "editor", false)
	seedPermission(t, store, "farms.view")
	require.NoError(t, svc.GrantPermissionToRole(context.Background(), role.ID, "farms.view"))

	err := svc.SyncRolePermissions(context.Background(), role.ID, []PermissionKey{"farms.view", "ghost.perm"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	keys, err := svc.RolePermissionKeys(context.Background(), role.ID)
	require.NoError(t, err)
	require.Equal(t, []PermissionKey{"farms.view"}, keys)
}

func TestSyncRoleActions(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	role := seedRole(t, store, "operator", false)
	seedAction(t, store, "tasks.assign", ScopeFarm, false, false)
	seedAction(t, store, "farms.delete", ScopeSystem, true, true)

	err := svc.SyncRoleActions(context.Background(), role.ID, []ActionKey{"tasks.assign", "farms.delete"})
	require.NoError(t, err)

	actions, err := svc.RoleActions(context.Background(), role.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	require.Equal(t, ActionKey("farms.delete"), actions[0].Key)
	require.True(t, actions[0].IsDangerous)
	require.True(t, actions[0].RequiresApproval)
}

func TestEnsureActionRejectsInvalidScope(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	_, err := svc.EnsureAction(context.Background(), Action{Key: "farms.edit", ScopeLevel: "galaxy"})
	require.Error(t, err)
}

func TestVerifyIntegrity(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	require.NoError(t, svc.VerifyIntegrity(context.Background()))

	store.orphans = 3
	require.Error(t, svc.VerifyIntegrity(context.Background()))

	store.orphans = 0
	store.orphanErr = errors.New("connection refused")
	require.Error(t, svc.VerifyIntegrity(context.Background()))
}

func TestSeedIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	require.NoError(t, Seed(context.Background(), svc))
	require.NoError(t, Seed(context.Background(), svc))

	role, err := store.GetRoleByKey(context.Background(), SuperAdminRoleKey)
	require.NoError(t, err)
	require.True(t, role.IsSystemRole)

	perms, err := store.ListPermissions(context.Background())
	require.NoError(t, err)
	require.Len(t, perms, len(CoreScopes()))
}
