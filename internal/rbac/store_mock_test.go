package rbac

import (
	"context"
	"sort"

	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/tenancy"
)

// memStore is an in-memory Store used across the package tests.
type memStore struct {
	roles       map[int64]Role
	permissions map[int64]Permission
	rolePerms   map[int64]map[int64]struct{}
	userRoles   map[int64]map[int64]struct{}
	users       map[int64]memUser

	txErr error
}

type memUser struct {
	name   string
	tenant tenancy.ID
	active bool
}

func newMemStore() *memStore {
	return &memStore{
		roles:       map[int64]Role{},
		permissions: map[int64]Permission{},
		rolePerms:   map[int64]map[int64]struct{}{},
		userRoles:   map[int64]map[int64]struct{}{},
		users:       map[int64]memUser{},
	}
}

func (m *memStore) addRole(r Role) {
	m.roles[r.ID] = r
}

func (m *memStore) addPermission(p Permission) {
	m.permissions[p.ID] = p
}

func (m *memStore) addUser(id int64, name string, tenant tenancy.ID, active bool) {
	m.users[id] = memUser{name: name, tenant: tenant, active: active}
}

func (m *memStore) grant(roleID int64, permissionIDs ...int64) {
	set, ok := m.rolePerms[roleID]
	if !ok {
		set = map[int64]struct{}{}
		m.rolePerms[roleID] = set
	}
	for _, id := range permissionIDs {
		set[id] = struct{}{}
	}
}

func (m *memStore) assign(userID int64, roleIDs ...int64) {
	set, ok := m.userRoles[userID]
	if !ok {
		set = map[int64]struct{}{}
		m.userRoles[userID] = set
	}
	for _, id := range roleIDs {
		set[id] = struct{}{}
	}
}

func (m *memStore) ListUserRoleIDs(_ context.Context, userID int64) ([]int64, error) {
	return sortedKeys(m.userRoles[userID]), nil
}

func (m *memStore) ListRolePermissionIDs(_ context.Context, roleID int64) ([]int64, error) {
	return sortedKeys(m.rolePerms[roleID]), nil
}

func (m *memStore) ListPermissionKeysForRoles(_ context.Context, roleIDs []int64) ([]string, error) {
	seen := map[string]struct{}{}
	for _, rid := range roleIDs {
		for pid := range m.rolePerms[rid] {
			if p, ok := m.permissions[pid]; ok {
				seen[p.Key] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) GetRole(_ context.Context, roleID int64) (Role, error) {
	role, ok := m.roles[roleID]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (m *memStore) ListRolesByIDs(_ context.Context, ids []int64) ([]Role, error) {
	var out []Role
	for _, id := range ids {
		if role, ok := m.roles[id]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func (m *memStore) GetUserTenant(_ context.Context, userID int64) (tenancy.ID, error) {
	user, ok := m.users[userID]
	if !ok {
		return tenancy.Nil, shared.ErrNotFound
	}
	return user.tenant, nil
}

func (m *memStore) ListPermissionsByIDs(_ context.Context, ids []int64) ([]Permission, error) {
	var out []Permission
	seen := map[int64]struct{}{}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := m.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListPermissionIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.permissions))
	for id := range m.permissions {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids, nil
}

func (m *memStore) ListRoleIDsWithPermission(_ context.Context, permissionID int64) ([]int64, error) {
	var ids []int64
	for rid, perms := range m.rolePerms {
		if _, ok := perms[permissionID]; ok {
			ids = append(ids, rid)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (m *memStore) ListActiveUsersByRoles(_ context.Context, roleIDs []int64) ([]ActiveUserRole, error) {
	wanted := map[int64]struct{}{}
	for _, id := range roleIDs {
		wanted[id] = struct{}{}
	}
	var out []ActiveUserRole
	for uid, roles := range m.userRoles {
		user, ok := m.users[uid]
		if !ok || !user.active {
			continue
		}
		for rid := range roles {
			if _, ok := wanted[rid]; !ok {
				continue
			}
			out = append(out, ActiveUserRole{UserID: uid, UserName: user.name, RoleName: m.roles[rid].Name})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].RoleName < out[j].RoleName
	})
	return out, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	return fn(ctx, &memTx{store: m})
}

type memTx struct {
	store *memStore
}

func (t *memTx) InsertRolePermissions(_ context.Context, roleID int64, permissionIDs []int64, _ int64) error {
	t.store.grant(roleID, permissionIDs...)
	return nil
}

func (t *memTx) DeleteRolePermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	for _, id := range permissionIDs {
		delete(t.store.rolePerms[roleID], id)
	}
	return nil
}

func (t *memTx) InsertUserRoles(_ context.Context, userID int64, roleIDs []int64, _ int64) error {
	t.store.assign(userID, roleIDs...)
	return nil
}

func (t *memTx) DeleteUserRoles(_ context.Context, userID int64, roleIDs []int64) error {
	for _, id := range roleIDs {
		delete(t.store.userRoles[userID], id)
	}
	return nil
}

func sortedKeys(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}
