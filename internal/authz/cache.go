package authz

import (
	"sync"
	"time"

	"github.com/agridesk/agridesk/internal/catalog"
)

// Resolution is an actor's resolved authority snapshot. Cached entries are
// immutable once stored; readers never observe a partially built set.
type Resolution struct {
	ActorID     int64
	RoleID      int64
	SuperAdmin  bool
	Inactive    bool
	Permissions map[catalog.PermissionKey]struct{}
	Actions     map[catalog.ActionKey]catalog.Action
}

// HasPermission reports whether the resolution carries the key. Super admins
// hold every key by definition, including keys absent from the catalog.
func (r Resolution) HasPermission(key catalog.PermissionKey) bool {
	if r.Inactive {
		return false
	}
	if r.SuperAdmin {
		return true
	}
	_, ok := r.Permissions[key]
	return ok
}

type cacheEntry struct {
	resolution Resolution
	expiresAt  time.Time
}

// Cache is a TTL cache of resolved permission sets keyed by actor ID. It is
// safe for concurrent use. A reverse index by role supports invalidating
// every actor resolved against a role when that role's grants change.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]cacheEntry
	byRole  map[int64]map[int64]struct{}
}

// NewCache constructs a Cache. A nil now function defaults to time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[int64]cacheEntry),
		byRole:  make(map[int64]map[int64]struct{}),
	}
}

// Get returns the cached resolution for the actor if present and fresh.
func (c *Cache) Get(actorID int64) (Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[actorID]
	if !ok {
		return Resolution{}, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.removeLocked(actorID)
		return Resolution{}, false
	}
	return entry.resolution, true
}

// Set stores the resolution with the configured TTL.
func (c *Cache) Set(resolution Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(resolution.ActorID)
	c.entries[resolution.ActorID] = cacheEntry{
		resolution: resolution,
		expiresAt:  c.now().Add(c.ttl),
	}
	if resolution.RoleID != 0 {
		actorSet, ok := c.byRole[resolution.RoleID]
		if !ok {
			actorSet = make(map[int64]struct{})
			c.byRole[resolution.RoleID] = actorSet
		}
		actorSet[resolution.ActorID] = struct{}{}
	}
}

// InvalidateActor drops one actor's cached resolution.
func (c *Cache) InvalidateActor(actorID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(actorID)
}

// InvalidateRole drops every actor cached against the role. This bounds the
// staleness window of a grant revocation to zero instead of the TTL.
func (c *Cache) InvalidateRole(roleID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for actorID := range c.byRole[roleID] {
		delete(c.entries, actorID)
	}
	delete(c.byRole, roleID)
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]cacheEntry)
	c.byRole = make(map[int64]map[int64]struct{})
}

// Len reports the number of cached actors. Exposed for the session purge job
// and the cache gauge.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeLocked(actorID int64) {
	entry, ok := c.entries[actorID]
	if !ok {
		return
	}
	delete(c.entries, actorID)
	if actorSet, ok := c.byRole[entry.resolution.RoleID]; ok {
		delete(actorSet, actorID)
		if len(actorSet) == 0 {
			delete(c.byRole, entry.resolution.RoleID)
		}
	}
}
