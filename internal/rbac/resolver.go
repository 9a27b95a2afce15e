package rbac

import (
	"context"
	"fmt"

	"github.com/minerva-sms/minerva/internal/tenancy"
)

// Resolver computes effective permission sets. The set is always derived
// from the current edges; it is never cached, because a stale grant is a
// security defect.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// EffectivePermissions returns the union of permission keys over every
// role the user holds. A user with no roles gets an empty set, not an
// error.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	roleIDs, err := r.store.ListUserRoleIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load user roles: %w", err)
	}
	if len(roleIDs) == 0 {
		return PermissionSet{}, nil
	}
	keys, err := r.store.ListPermissionKeysForRoles(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("rbac: load role permissions: %w", err)
	}
	return NewPermissionSet(keys...), nil
}

// HasPermission reports whether the principal holds the permission. A
// superadmin always does; the superuser is defined as omnipotent, not as
// holding every permission row.
func (r *Resolver) HasPermission(ctx context.Context, p tenancy.Principal, key string) (bool, error) {
	if p.SuperAdmin {
		return true, nil
	}
	set, err := r.EffectivePermissions(ctx, p.UserID)
	if err != nil {
		return false, err
	}
	return set.Has(key), nil
}

// HasAnyPermission reports whether the principal holds at least one of
// the keys.
func (r *Resolver) HasAnyPermission(ctx context.Context, p tenancy.Principal, keys ...string) (bool, error) {
	if p.SuperAdmin {
		return true, nil
	}
	set, err := r.EffectivePermissions(ctx, p.UserID)
	if err != nil {
		return false, err
	}
	return set.HasAny(keys...), nil
}

// HasAllPermissions reports whether the principal holds every key.
func (r *Resolver) HasAllPermissions(ctx context.Context, p tenancy.Principal, keys ...string) (bool, error) {
	if p.SuperAdmin {
		return true, nil
	}
	set, err := r.EffectivePermissions(ctx, p.UserID)
	if err != nil {
		return false, err
	}
	return set.HasAll(keys...), nil
}
