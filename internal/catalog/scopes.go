package catalog

// Core engine permissions. These gate the engine's own admin surface;
// domain permissions (finance, farms, messaging) arrive via seeding.
const (
	PermRolesView = PermissionKey("roles.view")
	PermRolesEdit = PermissionKey("roles.edit")

	PermPermissionsView = PermissionKey("permissions.view")

	PermActorsView = PermissionKey("actors.view")
	PermActorsEdit = PermissionKey("actors.edit")

	PermAuditView = PermissionKey("audit.view")
)

// CoreScopes lists all permissions belonging to the engine itself.
func CoreScopes() []PermissionKey {
	return []PermissionKey{
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
		PermActorsView,
		PermActorsEdit,
		PermAuditView,
	}
}
