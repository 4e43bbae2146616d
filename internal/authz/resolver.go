package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agridesk/agridesk/internal/actors"
	"github.com/agridesk/agridesk/internal/catalog"
	"github.com/agridesk/agridesk/internal/shared"
)

// ActorSource is the slice of the actor directory the resolver needs.
type ActorSource interface {
	GetActor(ctx context.Context, id int64) (actors.AdminActor, error)
}

// GrantSource is the slice of the grant store the resolver needs.
type GrantSource interface {
	GetRole(ctx context.Context, id int64) (catalog.Role, error)
	RolePermissionKeys(ctx context.Context, roleID int64) ([]catalog.PermissionKey, error)
	RoleActions(ctx context.Context, roleID int64) ([]catalog.Action, error)
	ListPermissions(ctx context.Context) ([]catalog.Permission, error)
	ListActions(ctx context.Context) ([]catalog.Action, error)
}

// MetricsRecorder receives resolver cache observations.
type MetricsRecorder interface {
	ObserveCacheLookup(hit bool)
}

// Resolver computes effective permission/action sets with a TTL cache in
// front of the grant store. Any lookup failure resolves to the empty set:
// the engine fails closed, never open.
type Resolver struct {
	actorSrc ActorSource
	grants   GrantSource
	cache    *Cache
	timeout  time.Duration
	logger   *slog.Logger
	metrics  MetricsRecorder
	group    singleflight.Group
}

// NewResolver constructs a Resolver.
func NewResolver(actorSrc ActorSource, grants GrantSource, cache *Cache, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{
		actorSrc: actorSrc,
		grants:   grants,
		cache:    cache,
		timeout:  timeout,
		logger:   logger,
	}
}

// SetMetrics attaches an optional metrics recorder.
func (r *Resolver) SetMetrics(m MetricsRecorder) { r.metrics = m }

// InvalidateActor drops one actor's cached resolution.
func (r *Resolver) InvalidateActor(actorID int64) { r.cache.InvalidateActor(actorID) }

// InvalidateRole drops every cached actor resolved against the role.
func (r *Resolver) InvalidateRole(roleID int64) { r.cache.InvalidateRole(roleID) }

// Resolve returns the actor's authority snapshot, from cache when fresh.
// Store failures surface as an empty, deny-everything resolution together
// with the underlying error for callers that need to distinguish.
func (r *Resolver) Resolve(ctx context.Context, actorID int64) (Resolution, error) {
	if res, ok := r.cache.Get(actorID); ok {
		r.observeCache(true)
		return res, nil
	}
	r.observeCache(false)

	key := fmt.Sprint(actorID)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.resolveUncached(ctx, actorID)
	})
	select {
	case <-ctx.Done():
		return emptyResolution(actorID), ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return emptyResolution(actorID), result.Err
		}
		return result.Val.(Resolution), nil
	}
}

func (r *Resolver) resolveUncached(ctx context.Context, actorID int64) (Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	actor, err := r.actorSrc.GetActor(ctx, actorID)
	if err != nil {
		return Resolution{}, r.failClosed(actorID, "load actor", err)
	}
	res := Resolution{
		ActorID:     actorID,
		RoleID:      actor.RoleID,
		Permissions: map[catalog.PermissionKey]struct{}{},
		Actions:     map[catalog.ActionKey]catalog.Action{},
	}
	if !actor.IsActive {
		// Inactive actors resolve to zero permissions regardless of role.
		// Cached so repeated checks stay cheap; directory mutations
		// invalidate explicitly.
		res.Inactive = true
		r.cache.Set(res)
		return res, nil
	}
	if actor.RoleID == 0 {
		r.cache.Set(res)
		return res, nil
	}

	role, err := r.grants.GetRole(ctx, actor.RoleID)
	if err != nil {
		return Resolution{}, r.failClosed(actorID, "load role", err)
	}
	if isSuperAdmin(role) {
		res.SuperAdmin = true
		r.cache.Set(res)
		return res, nil
	}

	keys, err := r.grants.RolePermissionKeys(ctx, role.ID)
	if err != nil {
		return Resolution{}, r.failClosed(actorID, "load permissions", err)
	}
	for _, key := range keys {
		res.Permissions[key] = struct{}{}
	}
	roleActions, err := r.grants.RoleActions(ctx, role.ID)
	if err != nil {
		return Resolution{}, r.failClosed(actorID, "load actions", err)
	}
	for _, action := range roleActions {
		res.Actions[action.Key] = action
	}
	r.cache.Set(res)
	return res, nil
}

// isSuperAdmin is the single implementation of the bypass rule. The
// permission path and the action path both route through it.
func isSuperAdmin(role catalog.Role) bool {
	return role.Key == catalog.SuperAdminRoleKey
}

// EffectivePermissions returns the actor's permission keys, sorted. Super
// admins hold every key, so their effective set is the whole catalog. Lookup
// failures yield the empty set.
func (r *Resolver) EffectivePermissions(ctx context.Context, actorID int64) []catalog.PermissionKey {
	res, err := r.Resolve(ctx, actorID)
	if err != nil || res.Inactive {
		return nil
	}
	if res.SuperAdmin {
		return r.allPermissionKeys(ctx, actorID)
	}
	keys := make([]catalog.PermissionKey, 0, len(res.Permissions))
	for key := range res.Permissions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (r *Resolver) allPermissionKeys(ctx context.Context, actorID int64) []catalog.PermissionKey {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	perms, err := r.grants.ListPermissions(ctx)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("authz list permissions failed closed",
				slog.Int64("actor_id", actorID), slog.Any("error", err))
		}
		return nil
	}
	keys := make([]catalog.PermissionKey, 0, len(perms))
	for _, perm := range perms {
		keys = append(keys, perm.Key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// EffectiveActions returns the actions granted to a role, keyed for lookup.
// The super admin role resolves to the whole action catalog.
func (r *Resolver) EffectiveActions(ctx context.Context, roleID int64) (map[catalog.ActionKey]catalog.Action, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	role, err := r.grants.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	var granted []catalog.Action
	if isSuperAdmin(role) {
		granted, err = r.grants.ListActions(ctx)
	} else {
		granted, err = r.grants.RoleActions(ctx, roleID)
	}
	if err != nil {
		return nil, err
	}
	out := make(map[catalog.ActionKey]catalog.Action, len(granted))
	for _, action := range granted {
		out[action.Key] = action
	}
	return out, nil
}

// HasPermission reports whether the actor holds the permission. Errors deny.
func (r *Resolver) HasPermission(ctx context.Context, actorID int64, key catalog.PermissionKey) bool {
	res, err := r.Resolve(ctx, actorID)
	if err != nil {
		return false
	}
	return res.HasPermission(key)
}

// HasAnyPermission reports whether the actor holds at least one of the keys.
func (r *Resolver) HasAnyPermission(ctx context.Context, actorID int64, keys []catalog.PermissionKey) bool {
	res, err := r.Resolve(ctx, actorID)
	if err != nil {
		return false
	}
	for _, key := range keys {
		if res.HasPermission(key) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the actor holds every key.
func (r *Resolver) HasAllPermissions(ctx context.Context, actorID int64, keys []catalog.PermissionKey) bool {
	res, err := r.Resolve(ctx, actorID)
	if err != nil {
		return false
	}
	for _, key := range keys {
		if !res.HasPermission(key) {
			return false
		}
	}
	return true
}

func (r *Resolver) failClosed(actorID int64, step string, err error) error {
	if r.logger != nil {
		r.logger.Warn("authz resolve failed closed",
			slog.Int64("actor_id", actorID),
			slog.String("step", step),
			slog.Any("error", err))
	}
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("authz: %s: %w", step, err)
	}
	return fmt.Errorf("authz: %s: %w: %v", step, shared.ErrStoreUnavailable, err)
}

func (r *Resolver) observeCache(hit bool) {
	if r.metrics != nil {
		r.metrics.ObserveCacheLookup(hit)
	}
}

func emptyResolution(actorID int64) Resolution {
	return Resolution{
		ActorID:     actorID,
		Permissions: map[catalog.PermissionKey]struct{}{},
		Actions:     map[catalog.ActionKey]catalog.Action{},
	}
}
