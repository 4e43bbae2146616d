package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agridesk/agridesk/internal/actors"
	"github.com/agridesk/agridesk/internal/catalog"
)

type fakeFarmSource struct {
	actors map[int64]actors.AdminActor
	farms  map[int64]map[string]struct{}
	err    error
}

func (f *fakeFarmSource) GetActor(ctx context.Context, id int64) (actors.AdminActor, error) {
	if f.err != nil {
		return actors.AdminActor{}, f.err
	}
	return f.actors[id], nil
}

func (f *fakeFarmSource) EffectiveFarmSet(ctx context.Context, actorID int64) (map[string]struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.farms[actorID], nil
}

type recordingApprovals struct {
	submits []string
}

func (r *recordingApprovals) EnsureSubmit(ctx context.Context, actionKey, resource string, actorID int64, note string) error {
	r.submits = append(r.submits, actionKey+"/"+resource)
	return nil
}

// farmManagerFixture wires an evaluator around a farm_manager actor assigned
// farms F1 and F2 and granted tasks.assign at farm scope.
func farmManagerFixture(t *testing.T) (*Evaluator, *recordingApprovals) {
	t.Helper()
	actor := actors.AdminActor{
		ID:       1,
		RoleID:   10,
		IsActive: true,
		Scope:    actors.Scope{Type: actors.ScopeFarms, Values: []string{"F1", "F2"}},
	}
	actorSrc := &fakeActorSource{actors: map[int64]actors.AdminActor{1: actor}}
	grants := &fakeGrantSource{
		roles: map[int64]catalog.Role{10: {ID: 10, Key: "farm_manager"}},
		actions: map[int64][]catalog.Action{10: {
			{Key: "tasks.assign", ScopeLevel: catalog.ScopeFarm},
			{Key: "farms.archive", ScopeLevel: catalog.ScopeFarm, IsDangerous: true},
			{Key: "budget.approve", ScopeLevel: catalog.ScopeFarm, RequiresApproval: true},
			{Key: "profile.edit", ScopeLevel: catalog.ScopeOwn},
		}},
	}
	resolver, _ := newTestResolver(actorSrc, grants)
	scopes := &fakeFarmSource{
		actors: map[int64]actors.AdminActor{1: actor},
		farms:  map[int64]map[string]struct{}{1: {"F1": {}, "F2": {}}},
	}
	approvals := &recordingApprovals{}
	return NewEvaluator(resolver, scopes, approvals, nil), approvals
}

func TestCanPerformActionInsideFarmScope(t *testing.T) {
	eval, _ := farmManagerFixture(t)

	decision := eval.CanPerformAction(context.Background(), 1, "tasks.assign", ResourceRef{Type: "farm", ID: "F1"})
	require.Equal(t, EffectAllow, decision.Effect)
	require.True(t, decision.Allowed())
	require.False(t, decision.Dangerous)

	decision = eval.CanPerformAction(context.Background(), 1, "tasks.assign", ResourceRef{Type: "farm", ID: "F2"})
	require.Equal(t, EffectAllow, decision.Effect)
}

func TestCanPerformActionOutsideFarmScope(t *testing.T) {
	eval, _ := farmManagerFixture(t)

	decision := eval.CanPerformAction(context.Background(), 1, "tasks.assign", ResourceRef{Type: "farm", ID: "F3"})
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, ReasonOutOfScope, decision.Reason)
	require.False(t, decision.Allowed())
}

func TestCanPerformActionRoleLacksGrant(t *testing.T) {
	eval, _ := farmManagerFixture(t)

	decision := eval.CanPerformAction(context.Background(), 1, "farms.delete", ResourceRef{ID: "F1"})
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, ReasonRoleLacksPermission, decision.Reason)
}

func TestCanPerformActionDangerousFlagSurvivesAllow(t *testing.T) {
	eval, _ := farmManagerFixture(t)

	decision := eval.CanPerformAction(context.Background(), 1, "farms.archive", ResourceRef{ID: "F1"})
	require.Equal(t, EffectAllow, decision.Effect)
	require.True(t, decision.Dangerous)
}

func TestCanPerformActionRequiresApproval(t *testing.T) {
	eval, approvals := farmManagerFixture(t)

	decision := eval.CanPerformAction(context.Background(), 1, "budget.approve", ResourceRef{ID: "F1"})
	require.Equal(t, EffectAllowPendingApproval, decision.Effect)
	require.True(t, decision.Allowed())
	require.Equal(t, []string{"budget.approve/F1"}, approvals.submits)
}

func TestCanPerformActionOwnScope(t *testing.T) {
	eval, _ := farmManagerFixture(t)

	decision := eval.CanPerformAction(context.Background(), 1, "profile.edit", ResourceRef{Type: "profile", ID: "p1", OwnerID: 1})
	require.Equal(t, EffectAllow, decision.Effect)

	decision = eval.CanPerformAction(context.Background(), 1, "profile.edit", ResourceRef{Type: "profile", ID: "p2", OwnerID: 2})
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, ReasonOutOfScope, decision.Reason)

	// Missing owner data denies rather than guessing.
	decision = eval.CanPerformAction(context.Background(), 1, "profile.edit", ResourceRef{Type: "profile", ID: "p3"})
	require.Equal(t, EffectDeny, decision.Effect)
}

func TestCanPerformActionSuperAdminBypassesScope(t *testing.T) {
	actor := actors.AdminActor{ID: 2, RoleID: 99, IsActive: true}
	actorSrc := &fakeActorSource{actors: map[int64]actors.AdminActor{2: actor}}
	grants := &fakeGrantSource{
		roles: map[int64]catalog.Role{99: {ID: 99, Key: catalog.SuperAdminRoleKey}},
	}
	resolver, _ := newTestResolver(actorSrc, grants)
	eval := NewEvaluator(resolver, &fakeFarmSource{}, nil, nil)

	// Unknown action key, no scope assignment: still a plain allow.
	decision := eval.CanPerformAction(context.Background(), 2, "anything.at_all", ResourceRef{ID: "F9"})
	require.Equal(t, EffectAllow, decision.Effect)
	require.Empty(t, decision.Reason)
}

func TestCanPerformActionInactiveActor(t *testing.T) {
	actor := actors.AdminActor{ID: 3, RoleID: 10, IsActive: false}
	actorSrc := &fakeActorSource{actors: map[int64]actors.AdminActor{3: actor}}
	grants := &fakeGrantSource{roles: map[int64]catalog.Role{10: {ID: 10, Key: "farm_manager"}}}
	resolver, _ := newTestResolver(actorSrc, grants)
	eval := NewEvaluator(resolver, &fakeFarmSource{}, nil, nil)

	decision := eval.CanPerformAction(context.Background(), 3, "tasks.assign", ResourceRef{ID: "F1"})
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, ReasonInactiveActor, decision.Reason)
}

func TestCanPerformActionNoRole(t *testing.T) {
	actor := actors.AdminActor{ID: 4, IsActive: true}
	actorSrc := &fakeActorSource{actors: map[int64]actors.AdminActor{4: actor}}
	resolver, _ := newTestResolver(actorSrc, &fakeGrantSource{})
	eval := NewEvaluator(resolver, &fakeFarmSource{}, nil, nil)

	decision := eval.CanPerformAction(context.Background(), 4, "tasks.assign", ResourceRef{ID: "F1"})
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, ReasonNoRole, decision.Reason)
}

func TestCanPerformActionUnknownActorReadsAsNoRole(t *testing.T) {
	resolver, _ := newTestResolver(&fakeActorSource{}, &fakeGrantSource{})
	eval := NewEvaluator(resolver, &fakeFarmSource{}, nil, nil)

	decision := eval.CanPerformAction(context.Background(), 404, "tasks.assign", ResourceRef{ID: "F1"})
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, ReasonNoRole, decision.Reason)
}

func TestCanPerformActionStoreErrorFailsClosed(t *testing.T) {
	actorSrc := &fakeActorSource{err: errors.New("connection refused")}
	resolver, _ := newTestResolver(actorSrc, &fakeGrantSource{})
	eval := NewEvaluator(resolver, &fakeFarmSource{}, nil, nil)

	decision := eval.CanPerformAction(context.Background(), 1, "tasks.assign", ResourceRef{ID: "F1"})
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, ReasonRoleLacksPermission, decision.Reason)
}

func TestCanPerformActionAllScopeActorPassesFarmChecks(t *testing.T) {
	actor := actors.AdminActor{
		ID:       5,
		RoleID:   10,
		IsActive: true,
		Scope:    actors.Scope{Type: actors.ScopeAll},
	}
	actorSrc := &fakeActorSource{actors: map[int64]actors.AdminActor{5: actor}}
	grants := &fakeGrantSource{
		roles:   map[int64]catalog.Role{10: {ID: 10, Key: "supervisor"}},
		actions: map[int64][]catalog.Action{10: {{Key: "tasks.assign", ScopeLevel: catalog.ScopeFarm}}},
	}
	resolver, _ := newTestResolver(actorSrc, grants)
	scopes := &fakeFarmSource{actors: map[int64]actors.AdminActor{5: actor}}
	eval := NewEvaluator(resolver, scopes, nil, nil)

	decision := eval.CanPerformAction(context.Background(), 5, "tasks.assign", ResourceRef{ID: "F77"})
	require.Equal(t, EffectAllow, decision.Effect)
}

func TestCanPerformActionTaskScope(t *testing.T) {
	actor := actors.AdminActor{
		ID:       6,
		RoleID:   10,
		IsActive: true,
		Scope:    actors.Scope{Type: actors.ScopeTasks, Values: []string{"T1", "T2"}},
	}
	actorSrc := &fakeActorSource{actors: map[int64]actors.AdminActor{6: actor}}
	grants := &fakeGrantSource{
		roles:   map[int64]catalog.Role{10: {ID: 10, Key: "task_runner"}},
		actions: map[int64][]catalog.Action{10: {{Key: "tasks.complete", ScopeLevel: catalog.ScopeTask}}},
	}
	resolver, _ := newTestResolver(actorSrc, grants)
	scopes := &fakeFarmSource{actors: map[int64]actors.AdminActor{6: actor}}
	eval := NewEvaluator(resolver, scopes, nil, nil)

	decision := eval.CanPerformAction(context.Background(), 6, "tasks.complete", ResourceRef{Type: "task", ID: "T1"})
	require.Equal(t, EffectAllow, decision.Effect)

	decision = eval.CanPerformAction(context.Background(), 6, "tasks.complete", ResourceRef{Type: "task", ID: "T9"})
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, ReasonOutOfScope, decision.Reason)
}

func TestCanPerformActionScopeLookupFailsClosed(t *testing.T) {
	actor := actors.AdminActor{ID: 7, RoleID: 10, IsActive: true, Scope: actors.Scope{Type: actors.ScopeFarms, Values: []string{"F1"}}}
	actorSrc := &fakeActorSource{actors: map[int64]actors.AdminActor{7: actor}}
	grants := &fakeGrantSource{
		roles:   map[int64]catalog.Role{10: {ID: 10, Key: "farm_manager"}},
		actions: map[int64][]catalog.Action{10: {{Key: "tasks.assign", ScopeLevel: catalog.ScopeFarm}}},
	}
	resolver, _ := newTestResolver(actorSrc, grants)
	scopes := &fakeFarmSource{err: context.DeadlineExceeded}
	eval := NewEvaluator(resolver, scopes, nil, nil)

	decision := eval.CanPerformAction(context.Background(), 7, "tasks.assign", ResourceRef{ID: "F1"})
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, ReasonOutOfScope, decision.Reason)
}
