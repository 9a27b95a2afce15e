package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/tenancy"
)

// assignmentFixture builds a store with a tenant admin (user 7 at tenant
// 3) holding the users and roles permissions, plus roles and users to
// act on.
func assignmentFixture() (*Service, *memStore) {
	store := newMemStore()
	store.addPermission(Permission{ID: 1, Key: shared.PermUsersEdit})
	store.addPermission(Permission{ID: 2, Key: shared.PermRolesEdit})
	store.addPermission(Permission{ID: 3, Key: shared.PermRolesView})
	store.addPermission(Permission{ID: 4, Key: shared.PermUsersView})
	store.addPermission(Permission{ID: 10, Key: "grades.view"})
	store.addPermission(Permission{ID: 11, Key: "grades.edit"})
	store.addRole(Role{ID: 1, Name: "Tenant Admin", TenantID: 3})
	store.addRole(Role{ID: 2, Name: "Teacher", TenantID: 3})
	store.addRole(Role{ID: 3, Name: "Other School Role", TenantID: 4})
	store.addRole(Role{ID: 4, Name: "Administrator", IsSystem: true})
	store.grant(1, 1, 2, 3, 4)
	store.addUser(7, "Admin Dana", 3, true)
	store.addUser(8, "Teacher Kim", 3, true)
	store.assign(7, 1)

	resolver := NewResolver(store)
	guard := NewGuard(resolver)
	sync := NewSynchronizer(store)
	return NewService(store, guard, sync, nil, nil, nil), store
}

func admin() tenancy.Principal {
	return tenancy.Principal{UserID: 7, Tenant: 3}
}

func TestAssignRoleAndNoOpRepeat(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, admin(), 8, 2, tenancy.Nil))
	held, err := svc.UserHasRole(ctx, admin(), 8, 2, tenancy.Nil)
	require.NoError(t, err)
	assert.True(t, held)

	// Assigning again must not fail or duplicate the edge.
	require.NoError(t, svc.AssignRole(ctx, admin(), 8, 2, tenancy.Nil))
	roleIDs, err := store.ListUserRoleIDs(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, roleIDs)
}

func TestRemoveRoleAndNoOpRepeat(t *testing.T) {
	svc, _ := assignmentFixture()
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, admin(), 8, 2, tenancy.Nil))
	require.NoError(t, svc.RemoveRole(ctx, admin(), 8, 2, tenancy.Nil))

	held, err := svc.UserHasRole(ctx, admin(), 8, 2, tenancy.Nil)
	require.NoError(t, err)
	assert.False(t, held)

	// Removing an absent edge is a silent no-op.
	require.NoError(t, svc.RemoveRole(ctx, admin(), 8, 2, tenancy.Nil))
}

func TestAssignRoleRefusedCrossTenant(t *testing.T) {
	svc, _ := assignmentFixture()

	err := svc.AssignRole(context.Background(), admin(), 8, 3, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestSystemRoleAssignableByTenantAdmin(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()

	// Shared roles are usable by every tenant even though only a
	// superadmin may change their grants.
	require.NoError(t, svc.AssignRole(ctx, admin(), 8, 4, tenancy.Nil))
	roleIDs, err := store.ListUserRoleIDs(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, roleIDs)
}

// foreignAdmin seeds an admin at tenant 4 holding the same permissions
// as the tenant-3 admin, through a role of their own tenant.
func foreignAdmin(store *memStore) tenancy.Principal {
	store.addRole(Role{ID: 6, Name: "Tenant Admin", TenantID: 4})
	store.grant(6, 1, 2, 3, 4)
	store.addUser(20, "Admin Lee", 4, true)
	store.assign(20, 6)
	return tenancy.Principal{UserID: 20, Tenant: 4}
}

func TestCrossTenantUserMutationRefused(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.assign(8, 2)
	other := foreignAdmin(store)

	// User 8 belongs to tenant 3; an admin from tenant 4 may not touch
	// their roles even with users.edit in hand.
	err := svc.RemoveAllRoles(ctx, other, 8, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)

	// Assigning a shared role is still pinned to the target user's tenant.
	err = svc.AssignRole(ctx, other, 8, 4, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)

	err = svc.RemoveRole(ctx, other, 8, 4, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.ReplaceAllRoles(ctx, other, 8, []int64{4}, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)

	roleIDs, err := store.ListUserRoleIDs(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, roleIDs)
}

func TestCrossTenantUserReadRefused(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.assign(8, 2)
	other := foreignAdmin(store)

	_, err := svc.UserHasRole(ctx, other, 8, 2, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)

	err = svc.AuthorizeUserRead(ctx, other, 8, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)

	// A superadmin sees across tenants.
	root := tenancy.Principal{UserID: 1, SuperAdmin: true}
	held, err := svc.UserHasRole(ctx, root, 8, 2, tenancy.Nil)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestPlatformAccountReachableOnlyBySuperAdmin(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.addUser(30, "Platform Ops", tenancy.Nil, true)

	err := svc.AssignRole(ctx, admin(), 30, 4, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)

	root := tenancy.Principal{UserID: 1, SuperAdmin: true}
	require.NoError(t, svc.AssignRole(ctx, root, 30, 4, tenancy.Nil))
}

func TestAssignRoleUnknownUser(t *testing.T) {
	svc, _ := assignmentFixture()

	err := svc.AssignRole(context.Background(), admin(), 404, 2, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignRoleUnknownRoleHiddenFromBarredCaller(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()

	// An authorized caller learns the role does not exist.
	err := svc.AssignRole(ctx, admin(), 8, 404, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// A caller without users.edit gets the same forbidden signal whether
	// or not the role exists.
	store.addUser(9, "Plain User", 3, true)
	nobody := tenancy.Principal{UserID: 9, Tenant: 3}
	err = svc.AssignRole(ctx, nobody, 8, 404, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)
	err = svc.AssignRole(ctx, nobody, 8, 2, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestReplaceAllRolesAppliesDiff(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.addRole(Role{ID: 5, Name: "Counselor", TenantID: 3})
	store.assign(8, 2)

	result, err := svc.ReplaceAllRoles(ctx, admin(), 8, []int64{5}, tenancy.Nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, result.Added)
	assert.Equal(t, []int64{2}, result.Removed)

	roleIDs, err := store.ListUserRoleIDs(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, roleIDs)
}

func TestReplaceAllRolesValidatesEveryRole(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.assign(8, 2)

	_, err := svc.ReplaceAllRoles(ctx, admin(), 8, []int64{2, 404}, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.ReplaceAllRoles(ctx, admin(), 8, []int64{2, 3}, tenancy.Nil)
	require.ErrorIs(t, err, shared.ErrForbidden)

	// Neither attempt touched the user's edges.
	roleIDs, err := store.ListUserRoleIDs(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, roleIDs)
}

func TestRemoveAllRolesStripsUser(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.addRole(Role{ID: 5, Name: "Counselor", TenantID: 3})
	store.assign(8, 2, 5)

	require.NoError(t, svc.RemoveAllRoles(ctx, admin(), 8, tenancy.Nil))
	roleIDs, err := store.ListUserRoleIDs(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, roleIDs)
}

func TestAssignPermissionsToRoleUnionsWithCurrent(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.grant(2, 10)

	result, err := svc.AssignPermissionsToRole(ctx, admin(), 2, []int64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, result.Added)
	assert.Empty(t, result.Removed)

	perms, err := store.ListRolePermissionIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, perms)
}

func TestAssignPermissionsToRoleRejectsEmptyList(t *testing.T) {
	svc, _ := assignmentFixture()

	_, err := svc.AssignPermissionsToRole(context.Background(), admin(), 2, nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRemovePermissionFromRole(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.grant(2, 10, 11)

	result, err := svc.RemovePermissionFromRole(ctx, admin(), 2, 11)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, result.Removed)

	// Revoking again is a no-op delta.
	result, err = svc.RemovePermissionFromRole(ctx, admin(), 2, 11)
	require.NoError(t, err)
	assert.True(t, result.Unchanged())
}

func TestReplaceRolePermissionsAndStrip(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.grant(2, 10)

	result, err := svc.ReplaceRolePermissions(ctx, admin(), 2, []int64{11})
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, result.Added)
	assert.Equal(t, []int64{10}, result.Removed)

	result, err = svc.RemoveAllPermissionsFromRole(ctx, admin(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, result.Removed)

	perms, err := store.ListRolePermissionIDs(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestCloneRolePermissionsThroughService(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.addRole(Role{ID: 5, Name: "Counselor", TenantID: 3})
	store.grant(2, 10, 11)
	store.grant(5, 10)

	result, err := svc.CloneRolePermissions(ctx, admin(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, result.Added)
	assert.Empty(t, result.Removed)

	perms, err := store.ListRolePermissionIDs(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, perms)
}

func TestCloneFromForeignRoleRefused(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.grant(3, 10, 11)

	// Role 3 belongs to tenant 4; a tenant-3 admin may not read its
	// grants into one of their own roles.
	_, err := svc.CloneRolePermissions(ctx, admin(), 3, 2)
	require.ErrorIs(t, err, shared.ErrForbidden)

	perms, err := store.ListRolePermissionIDs(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestCloneFromSystemRoleAllowed(t *testing.T) {
	svc, store := assignmentFixture()
	ctx := context.Background()
	store.grant(4, 10)

	result, err := svc.CloneRolePermissions(ctx, admin(), 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, result.Added)
}

func TestSystemRolePermissionMutationRequiresSuperAdmin(t *testing.T) {
	svc, _ := assignmentFixture()
	ctx := context.Background()

	_, err := svc.ReplaceRolePermissions(ctx, admin(), 4, []int64{10})
	require.ErrorIs(t, err, shared.ErrForbidden)

	root := tenancy.Principal{UserID: 1, SuperAdmin: true}
	result, err := svc.ReplaceRolePermissions(ctx, root, 4, []int64{10})
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, result.Added)
}
