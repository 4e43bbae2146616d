package actors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agridesk/agridesk/internal/shared"
)

// CacheInvalidator drops an actor's resolved permission set after directory
// mutations (role change, deactivation, scope change).
type CacheInvalidator interface {
	InvalidateActor(actorID int64)
}

// Service orchestrates the actor directory and per-actor resource grants.
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

// GetActor fetches one actor.
func (s *Service) GetActor(ctx context.Context, id int64) (AdminActor, error) {
	return s.store.GetActor(ctx, id)
}

// GetActorByEmail fetches one actor by email.
func (s *Service) GetActorByEmail(ctx context.Context, email string) (AdminActor, error) {
	return s.store.GetActorByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
}

// ListActors returns all actors.
func (s *Service) ListActors(ctx context.Context) ([]AdminActor, error) {
	return s.store.ListActors(ctx)
}

// ListActorIDsWithRole returns the IDs of actors holding the given role.
// The resolver cache uses this for role-level invalidation.
func (s *Service) ListActorIDsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	return s.store.ListActorIDsWithRole(ctx, roleID)
}

// CreateActor inserts a new administrative actor.
func (s *Service) CreateActor(ctx context.Context, actor AdminActor) (AdminActor, error) {
	actor.Email = strings.TrimSpace(strings.ToLower(actor.Email))
	if actor.Email == "" {
		return AdminActor{}, errors.New("actors: email required")
	}
	if actor.RoleID == 0 {
		return AdminActor{}, errors.New("actors: role required")
	}
	id, err := s.store.CreateActor(ctx, actor)
	if err != nil {
		return AdminActor{}, err
	}
	actor.ID = id
	if err := s.recordAudit(ctx, "actor.create", fmt.Sprint(id), "created actor "+actor.Email, nil); err != nil {
		return AdminActor{}, err
	}
	return actor, nil
}

// SetRole reassigns the actor's role and invalidates the cached resolution.
func (s *Service) SetRole(ctx context.Context, actorID, roleID int64) error {
	if err := s.store.SetRole(ctx, actorID, roleID); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "actor.set_role", fmt.Sprint(actorID),
		fmt.Sprintf("assigned role %d", roleID), nil); err != nil {
		return err
	}
	s.invalidate(actorID)
	return nil
}

// SetActive toggles the actor's active flag. Deactivation takes effect on
// the next check: the cached permission set is dropped immediately.
func (s *Service) SetActive(ctx context.Context, actorID int64, active bool) error {
	if err := s.store.SetActive(ctx, actorID, active); err != nil {
		return err
	}
	verb := "deactivated"
	if active {
		verb = "activated"
	}
	if err := s.recordAudit(ctx, "actor.set_active", fmt.Sprint(actorID), verb+" actor", nil); err != nil {
		return err
	}
	s.invalidate(actorID)
	return nil
}

// SetScope replaces the actor's coarse scope pair.
func (s *Service) SetScope(ctx context.Context, actorID int64, scope Scope) error {
	switch scope.Type {
	case ScopeAll, ScopeFarms, ScopeFarmSingle, ScopeTasks, ScopeNone:
	default:
		return fmt.Errorf("actors: invalid scope type %q", scope.Type)
	}
	if err := s.store.SetScope(ctx, actorID, scope); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "actor.set_scope", fmt.Sprint(actorID),
		fmt.Sprintf("scope %s (%d values)", scope.Type, len(scope.Values)), nil); err != nil {
		return err
	}
	s.invalidate(actorID)
	return nil
}

// AssignFarm grants one farm to the actor. Idempotent on (actor, farm).
func (s *Service) AssignFarm(ctx context.Context, actorID int64, farmID string, grantedBy int64) error {
	farmID = strings.TrimSpace(farmID)
	if farmID == "" {
		return errors.New("actors: farm id required")
	}
	if _, err := s.store.GetActor(ctx, actorID); err != nil {
		return err
	}
	if err := s.store.AddFarmAssignment(ctx, FarmAssignment{ActorID: actorID, FarmID: farmID, GrantedBy: grantedBy}); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "actor.assign_farm", fmt.Sprint(actorID),
		"assigned farm "+farmID, map[string]any{"farm_id": farmID, "granted_by": grantedBy}); err != nil {
		return err
	}
	s.invalidate(actorID)
	return nil
}

// RevokeFarm removes one farm grant from the actor.
func (s *Service) RevokeFarm(ctx context.Context, actorID int64, farmID string) error {
	if err := s.store.RemoveFarmAssignment(ctx, actorID, farmID); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, "actor.revoke_farm", fmt.Sprint(actorID),
		"revoked farm "+farmID, map[string]any{"farm_id": farmID}); err != nil {
		return err
	}
	s.invalidate(actorID)
	return nil
}

// EffectiveFarmSet unions the actor's scope values (when the scope is farm
// shaped) with its explicit farm assignments.
func (s *Service) EffectiveFarmSet(ctx context.Context, actorID int64) (map[string]struct{}, error) {
	actor, err := s.store.GetActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	farms := make(map[string]struct{})
	if actor.Scope.Type == ScopeFarms || actor.Scope.Type == ScopeFarmSingle {
		for _, v := range actor.Scope.Values {
			farms[v] = struct{}{}
		}
	}
	assignments, err := s.store.ListFarmAssignments(ctx, actorID)
	if err != nil {
		return nil, err
	}
	for _, fa := range assignments {
		farms[fa.FarmID] = struct{}{}
	}
	return farms, nil
}

func (s *Service) recordAudit(ctx context.Context, action, entityID, description string, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	actorID, _ := shared.ActorIDFromContext(ctx)
	err := s.audit.Record(ctx, shared.AuditEntry{
		ActorID:     actorID,
		Action:      action,
		Entity:      "actor",
		EntityID:    entityID,
		Description: description,
		Meta:        meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit record", slog.String("action", action), slog.Any("error", err))
	}
	return err
}

func (s *Service) invalidate(actorID int64) {
	if s.invalidator != nil {
		s.invalidator.InvalidateActor(actorID)
	}
}
