package rbac

import (
	"context"
	"fmt"

	"github.com/minerva-sms/minerva/internal/shared"
)

// Synchronizer applies a desired permission set to a role as a minimal
// add/remove delta inside one transaction. Unchanged edges keep their
// original audit stamps.
type Synchronizer struct {
	store Store
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(store Store) *Synchronizer {
	return &Synchronizer{store: store}
}

// CurrentPermissions returns the permission ids currently granted to the
// role.
func (s *Synchronizer) CurrentPermissions(ctx context.Context, roleID int64) ([]int64, error) {
	ids, err := s.store.ListRolePermissionIDs(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load role permissions: %w", err)
	}
	return ids, nil
}

// Synchronize replaces the role's permission set with desired, applying
// only the symmetric difference. Granting an already-present permission
// or revoking an absent one is a silent no-op; the diff never produces
// such writes. The whole call is all-or-nothing: any unknown permission
// id aborts before a single edge is touched. Calling twice with the same
// desired set yields an empty delta the second time.
func (s *Synchronizer) Synchronize(ctx context.Context, actorID, roleID int64, desired []int64) (SyncResult, error) {
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return SyncResult{}, fmt.Errorf("rbac: role %d: %w", roleID, err)
	}
	if err := s.validateCatalog(ctx, desired); err != nil {
		return SyncResult{}, err
	}
	current, err := s.store.ListRolePermissionIDs(ctx, roleID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("rbac: load role permissions: %w", err)
	}
	toAdd, toRemove := diffIDs(current, desired)
	result := SyncResult{Added: toAdd, Removed: toRemove}
	if result.Unchanged() {
		return result, nil
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		if len(toRemove) > 0 {
			if err := tx.DeleteRolePermissions(ctx, roleID, toRemove); err != nil {
				return err
			}
		}
		if len(toAdd) > 0 {
			if err := tx.InsertRolePermissions(ctx, roleID, toAdd, actorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("rbac: apply permission diff: %w", err)
	}
	return result, nil
}

// Clone replaces the target role's permissions with the source role's
// current set. Cloning a role onto itself, or from a role that has no
// permissions, is rejected.
func (s *Synchronizer) Clone(ctx context.Context, actorID, sourceRoleID, targetRoleID int64) (SyncResult, error) {
	if sourceRoleID == targetRoleID {
		return SyncResult{}, fmt.Errorf("rbac: clone source equals target: %w", shared.ErrValidation)
	}
	if _, err := s.store.GetRole(ctx, sourceRoleID); err != nil {
		return SyncResult{}, fmt.Errorf("rbac: source role %d: %w", sourceRoleID, err)
	}
	sourceIDs, err := s.store.ListRolePermissionIDs(ctx, sourceRoleID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("rbac: load source permissions: %w", err)
	}
	if len(sourceIDs) == 0 {
		return SyncResult{}, fmt.Errorf("rbac: source role has no permissions: %w", shared.ErrValidation)
	}
	return s.Synchronize(ctx, actorID, targetRoleID, sourceIDs)
}

// validateCatalog ensures every desired id exists before anything is
// written.
func (s *Synchronizer) validateCatalog(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	perms, err := s.store.ListPermissionsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("rbac: load permissions: %w", err)
	}
	known := make(map[int64]struct{}, len(perms))
	for _, p := range perms {
		known[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("rbac: permission %d: %w", id, shared.ErrNotFound)
		}
	}
	return nil
}
