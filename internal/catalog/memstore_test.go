package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/agridesk/agridesk/internal/shared"
)

// memStore is the in-memory Store used across the package tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64

	roles       map[int64]Role
	categories  map[int64]Category
	permissions map[int64]Permission
	actions     map[int64]Action

	rolePerms   map[int64]map[int64]struct{}
	roleActions map[int64]map[int64]struct{}

	actorCounts map[int64]int64

	// Error injection.
	grantErr  error
	orphanErr error
	orphans   int64
}

func newMemStore() *memStore {
	return &memStore{
		nextID:      1,
		roles:       make(map[int64]Role),
		categories:  make(map[int64]Category),
		permissions: make(map[int64]Permission),
		actions:     make(map[int64]Action),
		rolePerms:   make(map[int64]map[int64]struct{}),
		roleActions: make(map[int64]map[int64]struct{}),
		actorCounts: make(map[int64]int64),
	}
}

func (m *memStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return fn(ctx, m)
}

func (m *memStore) GetRole(ctx context.Context, id int64) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (m *memStore) GetRoleByKey(ctx context.Context, key string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.Key == key {
			return role, nil
		}
	}
	return Role{}, shared.ErrNotFound
}

func (m *memStore) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateRole(ctx context.Context, role Role) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role.ID = m.id()
	m.roles[role.ID] = role
	return role.ID, nil
}

func (m *memStore) UpdateRole(ctx context.Context, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.ID]; !ok {
		return shared.ErrNotFound
	}
	m.roles[role.ID] = role
	return nil
}

func (m *memStore) DeleteRole(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *memStore) CountActorsWithRole(ctx context.Context, roleID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actorCounts[roleID], nil
}

func (m *memStore) ListCategories(ctx context.Context) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Category, 0, len(m.categories))
	for _, cat := range m.categories {
		out = append(out, cat)
	}
	return out, nil
}

func (m *memStore) EnsureCategory(ctx context.Context, cat Category) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.Key == cat.Key {
			return existing.ID, nil
		}
	}
	cat.ID = m.id()
	m.categories[cat.ID] = cat
	return cat.ID, nil
}

func (m *memStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Permission, 0, len(m.permissions))
	for _, perm := range m.permissions {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) GetPermissionByKey(ctx context.Context, key PermissionKey) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, perm := range m.permissions {
		if perm.Key == key {
			return perm, nil
		}
	}
	return Permission{}, shared.ErrNotFound
}

func (m *memStore) EnsurePermission(ctx context.Context, perm Permission) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.permissions {
		if existing.Key == perm.Key {
			return existing.ID, nil
		}
	}
	perm.ID = m.id()
	m.permissions[perm.ID] = perm
	return perm.ID, nil
}

func (m *memStore) ListActions(ctx context.Context) ([]Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Action, 0, len(m.actions))
	for _, action := range m.actions {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) GetActionByKey(ctx context.Context, key ActionKey) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, action := range m.actions {
		if action.Key == key {
			return action, nil
		}
	}
	return Action{}, shared.ErrNotFound
}

func (m *memStore) EnsureAction(ctx context.Context, action Action) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.actions {
		if existing.Key == action.Key {
			return existing.ID, nil
		}
	}
	action.ID = m.id()
	m.actions[action.ID] = action
	return action.ID, nil
}

func (m *memStore) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.rolePerms[roleID]
	if !ok {
		set = make(map[int64]struct{})
		m.rolePerms[roleID] = set
	}
	set[permissionID] = struct{}{}
	return nil
}

func (m *memStore) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rolePerms[roleID], permissionID)
	return nil
}

func (m *memStore) GrantAction(ctx context.Context, roleID, actionID int64) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.roleActions[roleID]
	if !ok {
		set = make(map[int64]struct{})
		m.roleActions[roleID] = set
	}
	set[actionID] = struct{}{}
	return nil
}

func (m *memStore) RevokeAction(ctx context.Context, roleID, actionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roleActions[roleID], actionID)
	return nil
}

func (m *memStore) ClearRolePermissions(ctx context.Context, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rolePerms, roleID)
	return nil
}

func (m *memStore) ClearRoleActions(ctx context.Context, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roleActions, roleID)
	return nil
}

func (m *memStore) RolePermissionKeys(ctx context.Context, roleID int64) ([]PermissionKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PermissionKey, 0, len(m.rolePerms[roleID]))
	for id := range m.rolePerms[roleID] {
		out = append(out, m.permissions[id].Key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memStore) RoleActions(ctx context.Context, roleID int64) ([]Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Action, 0, len(m.roleActions[roleID]))
	for id := range m.roleActions[roleID] {
		out = append(out, m.actions[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) CountOrphanGrants(ctx context.Context) (int64, error) {
	if m.orphanErr != nil {
		return 0, m.orphanErr
	}
	return m.orphans, nil
}
