package actors

import "time"

// ScopeType declares the shape of an actor's coarse resource scope.
type ScopeType string

const (
	// ScopeAll grants visibility over every resource.
	ScopeAll ScopeType = "all"
	// ScopeFarms limits the actor to a list of farms.
	ScopeFarms ScopeType = "farms"
	// ScopeFarmSingle limits the actor to one farm. Same semantics as
	// ScopeFarms with a single value; kept distinct to mirror stored data.
	ScopeFarmSingle ScopeType = "farm"
	// ScopeTasks limits the actor to explicitly assigned tasks.
	ScopeTasks ScopeType = "tasks"
	// ScopeNone is the zero value for actors without any scope.
	ScopeNone ScopeType = ""
)

// Scope pairs a scope type with its opaque resource identifiers.
type Scope struct {
	Type   ScopeType
	Values []string
}

// AdminActor is a human operator of the back office. An actor holds exactly
// one role by reference; an inactive actor resolves to zero permissions.
type AdminActor struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	RoleID       int64
	IsActive     bool
	Scope        Scope
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FarmAssignment is an explicit grant of one farm to one actor, kept apart
// from the coarse scope pair so the grantor and time are auditable.
type FarmAssignment struct {
	ID        int64
	ActorID   int64
	FarmID    string
	GrantedBy int64
	GrantedAt time.Time
}
