package catalog

import "time"

// SuperAdminRoleKey identifies the role that bypasses every permission and
// action check. The bypass is an invariant of the engine, not a shortcut.
const SuperAdminRoleKey = "super_admin"

// ScopeLevel declares how far an action's grant reaches.
type ScopeLevel string

const (
	// ScopeSystem grants access to all resources of the action's type.
	ScopeSystem ScopeLevel = "system"
	// ScopeFarm narrows the grant to the actor's effective farm set.
	ScopeFarm ScopeLevel = "farm"
	// ScopeTask narrows the grant to explicitly assigned tasks.
	ScopeTask ScopeLevel = "task"
	// ScopeOwn narrows the grant to data owned by the actor itself.
	ScopeOwn ScopeLevel = "own"
)

// Valid reports whether the scope level is one of the known values.
func (s ScopeLevel) Valid() bool {
	switch s {
	case ScopeSystem, ScopeFarm, ScopeTask, ScopeOwn:
		return true
	}
	return false
}

// Role is a named bundle of authority. System roles are immutable except for
// their description.
type Role struct {
	ID           int64
	Key          string
	Name         string
	Description  string
	IsSystemRole bool
	Priority     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Category groups permissions and actions for presentation.
type Category struct {
	ID   int64
	Key  string
	Name string
}

// Permission is an atomic visibility/navigation grant. Catalog rows are
// immutable; only role associations change.
type Permission struct {
	ID          int64
	Key         PermissionKey
	Name        string
	Description string
	CategoryID  int64
	IsCritical  bool
}

// Action models a scoped operation grant. Unlike permissions, actions carry
// scope semantics and may require an approval workflow.
type Action struct {
	ID               int64
	Key              ActionKey
	Name             string
	Description      string
	CategoryID       int64
	ScopeLevel       ScopeLevel
	IsDangerous      bool
	RequiresApproval bool
}

// RolePermission is the role→permission join row.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
	CreatedAt    time.Time
}

// RoleAction is the role→action join row.
type RoleAction struct {
	RoleID    int64
	ActionID  int64
	CreatedAt time.Time
}
