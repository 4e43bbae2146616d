package actors

import "context"

// Store abstracts persistence for actors and their farm assignments.
type Store interface {
	GetActor(ctx context.Context, id int64) (AdminActor, error)
	GetActorByEmail(ctx context.Context, email string) (AdminActor, error)
	ListActors(ctx context.Context) ([]AdminActor, error)
	ListActorIDsWithRole(ctx context.Context, roleID int64) ([]int64, error)
	CreateActor(ctx context.Context, actor AdminActor) (int64, error)
	SetRole(ctx context.Context, actorID, roleID int64) error
	SetActive(ctx context.Context, actorID int64, active bool) error
	SetScope(ctx context.Context, actorID int64, scope Scope) error

	ListFarmAssignments(ctx context.Context, actorID int64) ([]FarmAssignment, error)
	// AddFarmAssignment is idempotent on (actor, farm).
	AddFarmAssignment(ctx context.Context, assignment FarmAssignment) error
	RemoveFarmAssignment(ctx context.Context, actorID int64, farmID string) error
}
