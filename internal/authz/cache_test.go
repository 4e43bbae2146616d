package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agridesk/agridesk/internal/catalog"
)

func TestCacheGetSetExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	cache := NewCache(5*time.Minute, clock)

	res := Resolution{
		ActorID:     7,
		RoleID:      3,
		Permissions: map[catalog.PermissionKey]struct{}{"farms.view": {}},
	}
	cache.Set(res)

	got, ok := cache.Get(7)
	require.True(t, ok)
	require.True(t, got.HasPermission("farms.view"))

	// Fresh right up to the TTL boundary, gone at it.
	now = now.Add(5*time.Minute - time.Second)
	_, ok = cache.Get(7)
	require.True(t, ok)

	now = now.Add(time.Second)
	_, ok = cache.Get(7)
	require.False(t, ok)
	require.Zero(t, cache.Len())
}

func TestCacheInvalidateActor(t *testing.T) {
	cache := NewCache(time.Hour, nil)
	cache.Set(Resolution{ActorID: 1, RoleID: 2})
	cache.Set(Resolution{ActorID: 9, RoleID: 2})

	cache.InvalidateActor(1)

	_, ok := cache.Get(1)
	require.False(t, ok)
	_, ok = cache.Get(9)
	require.True(t, ok)
}

func TestCacheInvalidateRoleDropsAllActors(t *testing.T) {
	cache := NewCache(time.Hour, nil)
	cache.Set(Resolution{ActorID: 1, RoleID: 2})
	cache.Set(Resolution{ActorID: 9, RoleID: 2})
	cache.Set(Resolution{ActorID: 5, RoleID: 4})

	cache.InvalidateRole(2)

	_, ok := cache.Get(1)
	require.False(t, ok)
	_, ok = cache.Get(9)
	require.False(t, ok)
	_, ok = cache.Get(5)
	require.True(t, ok)
	require.Equal(t, 1, cache.Len())
}

func TestCacheSetReplacesRoleIndex(t *testing.T) {
	cache := NewCache(time.Hour, nil)
	cache.Set(Resolution{ActorID: 1, RoleID: 2})
	// Actor moved to a different role; invalidating the old role must no
	// longer touch them.
	cache.Set(Resolution{ActorID: 1, RoleID: 4})

	cache.InvalidateRole(2)

	_, ok := cache.Get(1)
	require.True(t, ok)
}

func TestResolutionSuperAdminHoldsUnknownKeys(t *testing.T) {
	res := Resolution{SuperAdmin: true}
	require.True(t, res.HasPermission("never.registered"))

	res.Inactive = true
	require.False(t, res.HasPermission("never.registered"))
}
