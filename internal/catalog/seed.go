package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/agridesk/agridesk/internal/shared"
)

// Seed ensures the rows the engine cannot run without: the core category,
// the engine's own permissions and the super_admin system role. Safe to run
// on every boot; all writes are upserts.
func Seed(ctx context.Context, svc *Service) error {
	coreCat, err := svc.store.EnsureCategory(ctx, Category{Key: "core", Name: "Core"})
	if err != nil {
		return fmt.Errorf("catalog: seed core category: %w", err)
	}
	for _, key := range CoreScopes() {
		if _, err := svc.EnsurePermission(ctx, Permission{Key: key, CategoryID: coreCat}); err != nil {
			return fmt.Errorf("catalog: seed permission %s: %w", key, err)
		}
	}
	if _, err := svc.store.GetRoleByKey(ctx, SuperAdminRoleKey); err == nil {
		return nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("catalog: seed super admin role: %w", err)
	}
	_, err = svc.store.CreateRole(ctx, Role{
		Key:          SuperAdminRoleKey,
		Name:         "Super Admin",
		Description:  "Unconditional access to every permission and action.",
		IsSystemRole: true,
		Priority:     0,
	})
	if err != nil {
		return fmt.Errorf("catalog: seed super admin role: %w", err)
	}
	return nil
}
