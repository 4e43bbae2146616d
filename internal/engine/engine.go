// Package engine exposes the authorization and session API consumed by the
// application layer: may this actor perform this operation on this resource,
// and is this actor's session still valid.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agridesk/agridesk/internal/actors"
	"github.com/agridesk/agridesk/internal/auth"
	"github.com/agridesk/agridesk/internal/authz"
	"github.com/agridesk/agridesk/internal/catalog"
	"github.com/agridesk/agridesk/internal/session"
	"github.com/agridesk/agridesk/internal/shared"
)

// Credentials carries a login attempt.
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

// Engine bundles the authentication, resolution and scope components behind
// one synchronous surface.
type Engine struct {
	auth      *auth.Service
	resolver  *authz.Resolver
	evaluator *authz.Evaluator
	actors    *actors.Service
	catalog   *catalog.Service
	sessions  *session.Manager
	logger    *slog.Logger
}

// New constructs an Engine.
func New(authSvc *auth.Service, resolver *authz.Resolver, evaluator *authz.Evaluator,
	actorSvc *actors.Service, catalogSvc *catalog.Service, sessions *session.Manager, logger *slog.Logger) *Engine {
	return &Engine{
		auth:      authSvc,
		resolver:  resolver,
		evaluator: evaluator,
		actors:    actorSvc,
		catalog:   catalogSvc,
		sessions:  sessions,
		logger:    logger,
	}
}

// Authenticate verifies credentials and issues a session.
func (e *Engine) Authenticate(ctx context.Context, creds Credentials) (session.Session, actors.AdminActor, error) {
	return e.auth.Authenticate(ctx, creds.Email, creds.Password)
}

// ValidateSession resolves a session to its active actor.
func (e *Engine) ValidateSession(ctx context.Context, sessionID string) (actors.AdminActor, error) {
	return e.auth.ValidateSession(ctx, sessionID)
}

// SignOut clears session state.
func (e *Engine) SignOut(ctx context.Context, sessionID string) error {
	return e.auth.SignOut(ctx, sessionID)
}

// HasPermission reports whether the actor holds the permission. A successful
// check extends the calling session's activity window.
func (e *Engine) HasPermission(ctx context.Context, actorID int64, key catalog.PermissionKey) bool {
	ok := e.resolver.HasPermission(ctx, actorID, key)
	if ok {
		e.touchSession(ctx)
	}
	return ok
}

// HasAnyPermission reports whether the actor holds at least one key.
func (e *Engine) HasAnyPermission(ctx context.Context, actorID int64, keys []catalog.PermissionKey) bool {
	ok := e.resolver.HasAnyPermission(ctx, actorID, keys)
	if ok {
		e.touchSession(ctx)
	}
	return ok
}

// HasAllPermissions reports whether the actor holds every key.
func (e *Engine) HasAllPermissions(ctx context.Context, actorID int64, keys []catalog.PermissionKey) bool {
	ok := e.resolver.HasAllPermissions(ctx, actorID, keys)
	if ok {
		e.touchSession(ctx)
	}
	return ok
}

// EffectivePermissions lists the actor's resolved permission keys.
func (e *Engine) EffectivePermissions(ctx context.Context, actorID int64) []catalog.PermissionKey {
	return e.resolver.EffectivePermissions(ctx, actorID)
}

// CanPerformAction decides an action check against a scoped resource.
func (e *Engine) CanPerformAction(ctx context.Context, actorID int64, key catalog.ActionKey, resource authz.ResourceRef) authz.Decision {
	decision := e.evaluator.CanPerformAction(ctx, actorID, key, resource)
	if decision.Allowed() {
		e.touchSession(ctx)
	}
	return decision
}

// AssignResourceScope grants a farm to an actor.
func (e *Engine) AssignResourceScope(ctx context.Context, actorID int64, resource authz.ResourceRef, grantedBy int64) error {
	if resource.ID == "" {
		return fmt.Errorf("engine: resource id required")
	}
	return e.actors.AssignFarm(ctx, actorID, resource.ID, grantedBy)
}

// RevokeResourceScope removes a farm grant from an actor.
func (e *Engine) RevokeResourceScope(ctx context.Context, actorID int64, resource authz.ResourceRef) error {
	if resource.ID == "" {
		return fmt.Errorf("engine: resource id required")
	}
	return e.actors.RevokeFarm(ctx, actorID, resource.ID)
}

// SyncRolePermissions atomically replaces a role's permission grants.
func (e *Engine) SyncRolePermissions(ctx context.Context, roleID int64, rawKeys []string) error {
	keys := make([]catalog.PermissionKey, 0, len(rawKeys))
	for _, raw := range rawKeys {
		key, err := catalog.ParsePermissionKey(raw)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	return e.catalog.SyncRolePermissions(ctx, roleID, keys)
}

// touchSession extends the session carried in ctx, if any. Failures only log:
// the authorization decision already stands.
func (e *Engine) touchSession(ctx context.Context) {
	id := shared.SessionIDFromContext(ctx)
	if id == "" || e.sessions == nil {
		return
	}
	if _, err := e.sessions.Touch(ctx, id); err != nil && e.logger != nil {
		e.logger.Warn("touch session", slog.String("session_id", id), slog.Any("error", err))
	}
}
