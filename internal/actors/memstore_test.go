package actors

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agridesk/agridesk/internal/shared"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64

	actors      map[int64]AdminActor
	assignments map[int64]map[string]FarmAssignment

	assignErr error
}

func newMemStore() *memStore {
	return &memStore{
		nextID:      1,
		actors:      make(map[int64]AdminActor),
		assignments: make(map[int64]map[string]FarmAssignment),
	}
}

func (m *memStore) GetActor(ctx context.Context, id int64) (AdminActor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	actor, ok := m.actors[id]
	if !ok {
		return AdminActor{}, shared.ErrNotFound
	}
	return actor, nil
}

func (m *memStore) GetActorByEmail(ctx context.Context, email string) (AdminActor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, actor := range m.actors {
		if strings.EqualFold(actor.Email, email) {
			return actor, nil
		}
	}
	return AdminActor{}, shared.ErrNotFound
}

func (m *memStore) ListActors(ctx context.Context) ([]AdminActor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AdminActor, 0, len(m.actors))
	for _, actor := range m.actors {
		out = append(out, actor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListActorIDsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for _, actor := range m.actors {
		if actor.RoleID == roleID {
			out = append(out, actor.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memStore) CreateActor(ctx context.Context, actor AdminActor) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	actor.ID = m.nextID
	m.nextID++
	m.actors[actor.ID] = actor
	return actor.ID, nil
}

func (m *memStore) SetRole(ctx context.Context, actorID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	actor, ok := m.actors[actorID]
	if !ok {
		return shared.ErrNotFound
	}
	actor.RoleID = roleID
	m.actors[actorID] = actor
	return nil
}

func (m *memStore) SetActive(ctx context.Context, actorID int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	actor, ok := m.actors[actorID]
	if !ok {
		return shared.ErrNotFound
	}
	actor.IsActive = active
	m.actors[actorID] = actor
	return nil
}

func (m *memStore) SetScope(ctx context.Context, actorID int64, scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	actor, ok := m.actors[actorID]
	if !ok {
		return shared.ErrNotFound
	}
	actor.Scope = scope
	m.actors[actorID] = actor
	return nil
}

func (m *memStore) ListFarmAssignments(ctx context.Context, actorID int64) ([]FarmAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FarmAssignment, 0, len(m.assignments[actorID]))
	for _, fa := range m.assignments[actorID] {
		out = append(out, fa)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FarmID < out[j].FarmID })
	return out, nil
}

func (m *memStore) AddFarmAssignment(ctx context.Context, assignment FarmAssignment) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.assignments[assignment.ActorID]
	if !ok {
		set = make(map[string]FarmAssignment)
		m.assignments[assignment.ActorID] = set
	}
	if _, exists := set[assignment.FarmID]; !exists {
		set[assignment.FarmID] = assignment
	}
	return nil
}

func (m *memStore) RemoveFarmAssignment(ctx context.Context, actorID int64, farmID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments[actorID], farmID)
	return nil
}
