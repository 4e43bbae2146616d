package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/agridesk/agridesk/internal/actors"
	"github.com/agridesk/agridesk/internal/catalog"
	"github.com/agridesk/agridesk/internal/shared"
)

// Effect is the outcome of an action check.
type Effect string

const (
	// EffectAllow permits immediate execution.
	EffectAllow Effect = "allow"
	// EffectAllowPendingApproval permits the operation only through an
	// approval workflow. First-class so callers cannot miss it.
	EffectAllowPendingApproval Effect = "allow-pending-approval"
	// EffectDeny blocks the operation.
	EffectDeny Effect = "deny"
)

// Reason codes carried on denials for audit and debugging. The UI-facing
// message stays generic.
type Reason string

const (
	// ReasonNoRole denies actors without any role.
	ReasonNoRole Reason = "no-role"
	// ReasonRoleLacksPermission denies actions the role never granted.
	ReasonRoleLacksPermission Reason = "role-lacks-permission"
	// ReasonOutOfScope denies resources outside the actor's scope.
	ReasonOutOfScope Reason = "out-of-scope"
	// ReasonInactiveActor denies deactivated actors regardless of role.
	ReasonInactiveActor Reason = "inactive-actor"
)

// ResourceRef identifies the resource an action targets. OwnerID feeds
// own-scoped checks; ID feeds farm- and task-scoped checks.
type ResourceRef struct {
	Type    string
	ID      string
	OwnerID int64
}

// Decision is the engine's answer to "may this actor perform this action on
// this resource".
type Decision struct {
	Effect    Effect
	Reason    Reason
	ActionKey catalog.ActionKey
	Resource  ResourceRef
	// Dangerous advises the caller to audit-log the operation. It never
	// blocks by itself.
	Dangerous bool
}

// Allowed reports whether the operation may proceed, immediately or via the
// approval workflow.
func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow || d.Effect == EffectAllowPendingApproval
}

// FarmSetSource yields an actor's effective farm set (coarse scope values
// unioned with explicit farm assignments).
type FarmSetSource interface {
	GetActor(ctx context.Context, id int64) (actors.AdminActor, error)
	EffectiveFarmSet(ctx context.Context, actorID int64) (map[string]struct{}, error)
}

// ApprovalSink records a SUBMIT row when a decision routes to approval.
type ApprovalSink interface {
	EnsureSubmit(ctx context.Context, actionKey, resource string, actorID int64, note string) error
}

// DecisionRecorder receives decision observations for metrics.
type DecisionRecorder interface {
	ObserveDecision(effect, reason string)
}

// Evaluator intersects a granted action with the actor's assigned scope.
type Evaluator struct {
	resolver  *Resolver
	scopes    FarmSetSource
	approvals ApprovalSink
	logger    *slog.Logger
	metrics   DecisionRecorder
}

// NewEvaluator constructs an Evaluator. approvals may be nil when the caller
// routes approvals itself.
func NewEvaluator(resolver *Resolver, scopes FarmSetSource, approvals ApprovalSink, logger *slog.Logger) *Evaluator {
	return &Evaluator{resolver: resolver, scopes: scopes, approvals: approvals, logger: logger}
}

// SetMetrics attaches an optional metrics recorder.
func (e *Evaluator) SetMetrics(m DecisionRecorder) { e.metrics = m }

// CanPerformAction decides whether the actor may run the action against the
// resource. Lookup failures deny; nothing here ever fails open.
func (e *Evaluator) CanPerformAction(ctx context.Context, actorID int64, key catalog.ActionKey, resource ResourceRef) Decision {
	decision := e.evaluate(ctx, actorID, key, resource)
	if e.metrics != nil {
		e.metrics.ObserveDecision(string(decision.Effect), string(decision.Reason))
	}
	return decision
}

func (e *Evaluator) evaluate(ctx context.Context, actorID int64, key catalog.ActionKey, resource ResourceRef) Decision {
	deny := func(reason Reason) Decision {
		return Decision{Effect: EffectDeny, Reason: reason, ActionKey: key, Resource: resource}
	}

	res, err := e.resolver.Resolve(ctx, actorID)
	if err != nil {
		// Unknown actors read as having no role; store failures stay on the
		// permission reason so fail-closed denials are distinguishable from
		// scope denials in the trail.
		if errors.Is(err, shared.ErrNotFound) {
			return deny(ReasonNoRole)
		}
		return deny(ReasonRoleLacksPermission)
	}
	if res.Inactive {
		return deny(ReasonInactiveActor)
	}
	if res.SuperAdmin {
		// Bypass is unconditional, including keys absent from the catalog.
		return Decision{Effect: EffectAllow, ActionKey: key, Resource: resource}
	}
	if res.RoleID == 0 {
		return deny(ReasonNoRole)
	}

	action, granted := res.Actions[key]
	if !granted {
		return deny(ReasonRoleLacksPermission)
	}

	if !e.inScope(ctx, actorID, action, resource) {
		d := deny(ReasonOutOfScope)
		d.Dangerous = action.IsDangerous
		return d
	}

	decision := Decision{Effect: EffectAllow, ActionKey: key, Resource: resource, Dangerous: action.IsDangerous}
	if action.RequiresApproval {
		decision.Effect = EffectAllowPendingApproval
		if e.approvals != nil {
			if err := e.approvals.EnsureSubmit(ctx, key.String(), resource.ID, actorID, "pending approval"); err != nil && e.logger != nil {
				e.logger.Warn("record approval submit", slog.Any("error", err))
			}
		}
	}
	return decision
}

func (e *Evaluator) inScope(ctx context.Context, actorID int64, action catalog.Action, resource ResourceRef) bool {
	switch action.ScopeLevel {
	case catalog.ScopeSystem:
		return true
	case catalog.ScopeFarm:
		actor, err := e.scopes.GetActor(ctx, actorID)
		if err != nil {
			e.warnScope(actorID, err)
			return false
		}
		if actor.Scope.Type == actors.ScopeAll {
			return true
		}
		farms, err := e.scopes.EffectiveFarmSet(ctx, actorID)
		if err != nil {
			e.warnScope(actorID, err)
			return false
		}
		_, ok := farms[resource.ID]
		return ok
	case catalog.ScopeOwn:
		return resource.OwnerID != 0 && resource.OwnerID == actorID
	case catalog.ScopeTask:
		actor, err := e.scopes.GetActor(ctx, actorID)
		if err != nil {
			e.warnScope(actorID, err)
			return false
		}
		if actor.Scope.Type != actors.ScopeTasks {
			return false
		}
		for _, taskID := range actor.Scope.Values {
			if taskID == resource.ID {
				return true
			}
		}
		return false
	default:
		// Unknown scope levels deny rather than guess.
		return false
	}
}

func (e *Evaluator) warnScope(actorID int64, err error) {
	if e.logger != nil {
		e.logger.Warn("scope lookup failed closed", slog.Int64("actor_id", actorID), slog.Any("error", err))
	}
}
