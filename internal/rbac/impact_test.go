package rbac

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// impactFixture: permission 10 is granted through roles 1 and 2. Users 7
// and 8 hold both roles, user 9 holds one but is inactive.
func impactFixture() *memStore {
	store := newMemStore()
	store.addRole(Role{ID: 1, Name: "Teacher"})
	store.addRole(Role{ID: 2, Name: "Registrar"})
	store.addRole(Role{ID: 3, Name: "Counselor"})
	store.addPermission(Permission{ID: 10, Key: "grades.view"})
	store.addPermission(Permission{ID: 11, Key: "reports.view"})
	store.grant(1, 10)
	store.grant(2, 10)
	store.grant(3, 11)
	store.addUser(7, "Dana", 3, true)
	store.addUser(8, "Kim", 3, true)
	store.addUser(9, "Gone", 3, false)
	store.assign(7, 1, 2)
	store.assign(8, 2)
	store.assign(9, 1)
	return store
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestUsersWithPermissionGroupsRoles(t *testing.T) {
	analyzer := NewAnalyzer(impactFixture(), nil)

	impacts, err := analyzer.UsersWithPermission(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, impacts, 2)

	assert.Equal(t, int64(7), impacts[0].UserID)
	assert.Equal(t, "Dana", impacts[0].UserName)
	assert.Equal(t, []string{"Registrar", "Teacher"}, impacts[0].RoleNames)

	assert.Equal(t, int64(8), impacts[1].UserID)
	assert.Equal(t, []string{"Registrar"}, impacts[1].RoleNames)
}

func TestUsersWithPermissionExcludesInactive(t *testing.T) {
	analyzer := NewAnalyzer(impactFixture(), nil)

	impacts, err := analyzer.UsersWithPermission(context.Background(), 10)
	require.NoError(t, err)
	for _, impact := range impacts {
		assert.NotEqual(t, int64(9), impact.UserID)
	}
}

func TestUsersWithPermissionNobodyHoldsIt(t *testing.T) {
	store := impactFixture()
	store.addPermission(Permission{ID: 12, Key: "unused.key"})
	analyzer := NewAnalyzer(store, nil)

	impacts, err := analyzer.UsersWithPermission(context.Background(), 12)
	require.NoError(t, err)
	assert.Empty(t, impacts)
}

func TestCountUsersWithPermissionCachesResult(t *testing.T) {
	store := impactFixture()
	analyzer := NewAnalyzer(store, testRedis(t))
	ctx := context.Background()

	count, err := analyzer.CountUsersWithPermission(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// The count is advisory: a stale cached value is served until the
	// TTL expires even after the edges changed underneath.
	store.assign(9, 2)
	store.addUser(9, "Back", 3, true)
	count, err = analyzer.CountUsersWithPermission(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCountUsersWithPermissionWithoutCache(t *testing.T) {
	analyzer := NewAnalyzer(impactFixture(), nil)

	count, err := analyzer.CountUsersWithPermission(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSnapshotImpactCountsWarmsWholeCatalog(t *testing.T) {
	client := testRedis(t)
	analyzer := NewAnalyzer(impactFixture(), client)
	ctx := context.Background()

	require.NoError(t, analyzer.SnapshotImpactCounts(ctx, nil))

	cached, err := client.Get(ctx, impactCountKey(10)).Int()
	require.NoError(t, err)
	assert.Equal(t, 2, cached)

	cached, err = client.Get(ctx, impactCountKey(11)).Int()
	require.NoError(t, err)
	assert.Equal(t, 0, cached)
}
