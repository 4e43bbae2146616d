package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agridesk/agridesk/internal/shared"
)

// CacheInvalidator drops resolved permission sets when grants change.
// Role-level invalidation covers every actor resolved against that role.
type CacheInvalidator interface {
	InvalidateActor(actorID int64)
	InvalidateRole(roleID int64)
}

// Service orchestrates catalog and grant-store operations. Every mutation is
// audited and invalidates the resolver cache for the affected role.
type Service struct {
	store       Store
	audit       shared.AuditSink
	invalidator CacheInvalidator
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, audit shared.AuditSink, invalidator CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{store: store, audit: audit, invalidator: invalidator, logger: logger}
}

// ListRoles returns all roles ordered by priority.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// GetRoleByKey fetches a role by its unique key.
func (s *Service) GetRoleByKey(ctx context.Context, key string) (Role, error) {
	return s.store.GetRoleByKey(ctx, strings.TrimSpace(key))
}

// CreateRole inserts a new non-system role.
func (s *Service) CreateRole(ctx context.Context, key, name, description string, priority int) (Role, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Role{}, errors.New("catalog: role key required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = displayName(key)
	}
	role := Role{Key: key, Name: name, Description: strings.TrimSpace(description), Priority: priority}
	id, err := s.store.CreateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	role.ID = id
	if err := s.recordAudit(ctx, "role.create", "role", fmt.Sprint(id), "created role "+key, nil); err != nil {
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates an existing role. System roles accept description-only
// changes; touching their name or priority fails with ErrImmutableResource.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string, priority int) (Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	name = strings.TrimSpace(name)
	if role.IsSystemRole {
		if (name != "" && name != role.Name) || priority != role.Priority {
			return Role{}, fmt.Errorf("catalog: role %s: %w", role.Key, shared.ErrImmutableResource)
		}
		name = role.Name
		priority = role.Priority
	}
	if name == "" {
		return Role{}, errors.New("catalog: role name required")
	}
	role.Name = name
	role.Description = strings.TrimSpace(description)
	role.Priority = priority
	if err := s.store.UpdateRole(ctx, role); err != nil {
		return Role{}, err
	}
	if err := s.recordAudit(ctx, "role.update", "role", fmt.Sprint(id), "updated role "+role.Key, nil); err != nil {
		return Role{}, err
	}
	s.invalidateRole(id)
	return role, nil
}

// DeleteRole removes a role. System roles are immutable; roles still
// referenced by an actor are rejected, leaving role and grants untouched.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return fmt.Errorf("catalog: role %s: %w", role.Key, shared.ErrImmutableResource)
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		count, err := tx.CountActorsWithRole(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("catalog: role %s referenced by %d actors: %w", role.Key, count, shared.ErrResourceInUse)
		}
		if err := tx.ClearRolePermissions(ctx, id); err != nil {
			return err
		}
		if err := tx.ClearRoleActions(ctx, id); err != nil {
			return err
		}
		return tx.DeleteRole(ctx, id)
	})
	if err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "role.delete", "role", fmt.Sprint(id), "deleted role "+role.Key, nil); err != nil {
		return err
	}
	s.invalidateRole(id)
	return nil
}

// ListCategories returns all catalog categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

// ListPermissions returns all permissions ordered by key.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// ListActions returns all actions ordered by key.
func (s *Service) ListActions(ctx context.Context) ([]Action, error) {
	return s.store.ListActions(ctx)
}

// EnsurePermission upserts a catalog permission row.
func (s *Service) EnsurePermission(ctx context.Context, perm Permission) (Permission, error) {
	if perm.Key == "" {
		return Permission{}, errors.New("catalog: permission key required")
	}
	if strings.TrimSpace(perm.Name) == "" {
		perm.Name = displayName(perm.Key.String())
	}
	id, err := s.store.EnsurePermission(ctx, perm)
	if err != nil {
		return Permission{}, err
	}
	perm.ID = id
	return perm, nil
}

// EnsureAction upserts a catalog action row.
func (s *Service) EnsureAction(ctx context.Context, action Action) (Action, error) {
	if action.Key == "" {
		return Action{}, errors.New("catalog: action key required")
	}
	if !action.ScopeLevel.Valid() {
		return Action{}, fmt.Errorf("catalog: action %s: invalid scope level %q", action.Key, action.ScopeLevel)
	}
	if strings.TrimSpace(action.Name) == "" {
		action.Name = displayName(action.Key.String())
	}
	id, err := s.store.EnsureAction(ctx, action)
	if err != nil {
		return Action{}, err
	}
	action.ID = id
	return action, nil
}

// GrantPermissionToRole attaches a permission to a role. Granting twice is a no-op.
func (s *Service) GrantPermissionToRole(ctx context.Context, roleID int64, key PermissionKey) error {
	perm, err := s.store.GetPermissionByKey(ctx, key)
	if err != nil {
		return err
	}
	if err := s.store.GrantPermission(ctx, roleID, perm.ID); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "role.grant_permission", "role", fmt.Sprint(roleID), "granted "+key.String(), nil); err != nil {
		return err
	}
	s.invalidateRole(roleID)
	return nil
}

// RevokePermissionFromRole detaches a permission from a role.
func (s *Service) RevokePermissionFromRole(ctx context.Context, roleID int64, key PermissionKey) error {
	perm, err := s.store.GetPermissionByKey(ctx, key)
	if err != nil {
		return err
	}
	if err := s.store.RevokePermission(ctx, roleID, perm.ID); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "role.revoke_permission", "role", fmt.Sprint(roleID), "revoked "+key.String(), nil); err != nil {
		return err
	}
	s.invalidateRole(roleID)
	return nil
}

// GrantActionToRole attaches an action to a role. Granting twice is a no-op.
func (s *Service) GrantActionToRole(ctx context.Context, roleID int64, key ActionKey) error {
	action, err := s.store.GetActionByKey(ctx, key)
	if err != nil {
		return err
	}
	if err := s.store.GrantAction(ctx, roleID, action.ID); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "role.grant_action", "role", fmt.Sprint(roleID), "granted "+key.String(), nil); err != nil {
		return err
	}
	s.invalidateRole(roleID)
	return nil
}

// RevokeActionFromRole detaches an action from a role.
func (s *Service) RevokeActionFromRole(ctx context.Context, roleID int64, key ActionKey) error {
	action, err := s.store.GetActionByKey(ctx, key)
	if err != nil {
		return err
	}
	if err := s.store.RevokeAction(ctx, roleID, action.ID); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "role.revoke_action", "role", fmt.Sprint(roleID), "revoked "+key.String(), nil); err != nil {
		return err
	}
	s.invalidateRole(roleID)
	return nil
}

// SyncRolePermissions replaces the role's permission grants with exactly the
// provided set, in one transaction. A failure leaves the old set intact.
func (s *Service) SyncRolePermissions(ctx context.Context, roleID int64, keys []PermissionKey) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.GetRole(ctx, roleID); err != nil {
			return err
		}
		ids := make([]int64, 0, len(keys))
		for _, key := range keys {
			perm, err := tx.GetPermissionByKey(ctx, key)
			if err != nil {
				return fmt.Errorf("catalog: sync role %d: permission %s: %w", roleID, key, err)
			}
			ids = append(ids, perm.ID)
		}
		if err := tx.ClearRolePermissions(ctx, roleID); err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.GrantPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "role.sync_permissions", "role", fmt.Sprint(roleID),
		fmt.Sprintf("replaced permission set (%d keys)", len(keys)), map[string]any{"keys": keys}); err != nil {
		return err
	}
	s.invalidateRole(roleID)
	return nil
}

// SyncRoleActions replaces the role's action grants atomically.
func (s *Service) SyncRoleActions(ctx context.Context, roleID int64, keys []ActionKey) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.GetRole(ctx, roleID); err != nil {
			return err
		}
		ids := make([]int64, 0, len(keys))
		for _, key := range keys {
			action, err := tx.GetActionByKey(ctx, key)
			if err != nil {
				return fmt.Errorf("catalog: sync role %d: action %s: %w", roleID, key, err)
			}
			ids = append(ids, action.ID)
		}
		if err := tx.ClearRoleActions(ctx, roleID); err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.GrantAction(ctx, roleID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "role.sync_actions", "role", fmt.Sprint(roleID),
		fmt.Sprintf("replaced action set (%d keys)", len(keys)), map[string]any{"keys": keys}); err != nil {
		return err
	}
	s.invalidateRole(roleID)
	return nil
}

// RolePermissionKeys lists the permission keys granted to a role.
func (s *Service) RolePermissionKeys(ctx context.Context, roleID int64) ([]PermissionKey, error) {
	return s.store.RolePermissionKeys(ctx, roleID)
}

// RoleActions lists the actions granted to a role with their metadata.
func (s *Service) RoleActions(ctx context.Context, roleID int64) ([]Action, error) {
	return s.store.RoleActions(ctx, roleID)
}

// VerifyIntegrity fails when grant rows reference missing catalog rows.
// Called at startup; a violation is a boot error, not a runtime one.
func (s *Service) VerifyIntegrity(ctx context.Context) error {
	count, err := s.store.CountOrphanGrants(ctx)
	if err != nil {
		return fmt.Errorf("catalog: integrity check: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("catalog: integrity check: %d orphaned grant rows", count)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action, entity, entityID, description string, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	actorID, _ := shared.ActorIDFromContext(ctx)
	err := s.audit.Record(ctx, shared.AuditEntry{
		ActorID:     actorID,
		Action:      action,
		Entity:      entity,
		EntityID:    entityID,
		Description: description,
		Meta:        meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit record", slog.String("action", action), slog.Any("error", err))
	}
	return err
}

func (s *Service) invalidateRole(roleID int64) {
	if s.invalidator != nil {
		s.invalidator.InvalidateRole(roleID)
	}
}

var titleCaser = cases.Title(language.English)

// displayName derives a human readable name from a dotted key, e.g.
// "farms.edit" becomes "Farms Edit".
func displayName(key string) string {
	return titleCaser.String(strings.ReplaceAll(strings.ReplaceAll(key, ".", " "), "_", " "))
}
