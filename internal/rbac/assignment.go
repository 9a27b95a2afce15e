package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/tenancy"
)

// ImpactRefresher re-warms the advisory impact cache for the given
// permissions, usually by enqueueing a background task.
type ImpactRefresher interface {
	RefreshImpact(ctx context.Context, permissionIDs []int64) error
}

// Service exposes the caller-facing assignment operations. Every mutation
// runs Authorize first, validates its inputs, applies the edge delta in
// one transaction and records an audit entry.
type Service struct {
	store  Store
	guard  *Guard
	sync   *Synchronizer
	audit  *shared.AuditLogger
	impact ImpactRefresher
	logger *slog.Logger
}

// NewService constructs the assignment service. audit and impact are
// optional.
func NewService(store Store, guard *Guard, sync *Synchronizer, audit *shared.AuditLogger, impact ImpactRefresher, logger *slog.Logger) *Service {
	return &Service{store: store, guard: guard, sync: sync, audit: audit, impact: impact, logger: logger}
}

// AssignRole grants the role to the user. Granting a role the user
// already holds is a silent no-op.
func (s *Service) AssignRole(ctx context.Context, p tenancy.Principal, userID, roleID int64, requestedTenant tenancy.ID) error {
	role, err := s.authorizeRoleTarget(ctx, p, roleID, shared.PermUsersEdit)
	if err != nil {
		return err
	}
	if err := ensureScope(p, requestedTenant, role.TenantID); err != nil {
		return err
	}
	if err := s.authorizeUserTarget(ctx, p, userID, requestedTenant, shared.PermUsersEdit); err != nil {
		return err
	}
	current, err := s.store.ListUserRoleIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("rbac: load user roles: %w", err)
	}
	if containsID(current, roleID) {
		return nil
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		return tx.InsertUserRoles(ctx, userID, []int64{roleID}, p.UserID)
	})
	if err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	s.recordAudit(ctx, p, "rbac.role.assign", "user", userID, map[string]any{"role_id": roleID, "role": role.Name})
	return nil
}

// RemoveRole revokes the role from the user. Revoking a role the user
// does not hold is a silent no-op.
func (s *Service) RemoveRole(ctx context.Context, p tenancy.Principal, userID, roleID int64, requestedTenant tenancy.ID) error {
	role, err := s.authorizeRoleTarget(ctx, p, roleID, shared.PermUsersEdit)
	if err != nil {
		return err
	}
	if err := ensureScope(p, requestedTenant, role.TenantID); err != nil {
		return err
	}
	if err := s.authorizeUserTarget(ctx, p, userID, requestedTenant, shared.PermUsersEdit); err != nil {
		return err
	}
	current, err := s.store.ListUserRoleIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("rbac: load user roles: %w", err)
	}
	if !containsID(current, roleID) {
		return nil
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		return tx.DeleteUserRoles(ctx, userID, []int64{roleID})
	})
	if err != nil {
		return fmt.Errorf("rbac: remove role: %w", err)
	}
	s.recordAudit(ctx, p, "rbac.role.remove", "user", userID, map[string]any{"role_id": roleID, "role": role.Name})
	return nil
}

// ReplaceAllRoles swaps the user's role set for the given one using the
// same minimal-diff strategy as permission synchronization. An empty set
// removes every role. Returns the applied delta.
func (s *Service) ReplaceAllRoles(ctx context.Context, p tenancy.Principal, userID int64, roleIDs []int64, requestedTenant tenancy.ID) (SyncResult, error) {
	if err := s.authorizeRoleSet(ctx, p, roleIDs, requestedTenant, shared.PermUsersEdit); err != nil {
		return SyncResult{}, err
	}
	if err := s.authorizeUserTarget(ctx, p, userID, requestedTenant, shared.PermUsersEdit); err != nil {
		return SyncResult{}, err
	}
	current, err := s.store.ListUserRoleIDs(ctx, userID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("rbac: load user roles: %w", err)
	}
	toAdd, toRemove := diffIDs(current, roleIDs)
	result := SyncResult{Added: toAdd, Removed: toRemove}
	if result.Unchanged() {
		return result, nil
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		if len(toRemove) > 0 {
			if err := tx.DeleteUserRoles(ctx, userID, toRemove); err != nil {
				return err
			}
		}
		if len(toAdd) > 0 {
			if err := tx.InsertUserRoles(ctx, userID, toAdd, p.UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("rbac: replace roles: %w", err)
	}
	s.recordAudit(ctx, p, "rbac.role.replace", "user", userID, map[string]any{"added": toAdd, "removed": toRemove})
	return result, nil
}

// RemoveAllRoles strips every role from the user.
func (s *Service) RemoveAllRoles(ctx context.Context, p tenancy.Principal, userID int64, requestedTenant tenancy.ID) error {
	_, err := s.ReplaceAllRoles(ctx, p, userID, nil, requestedTenant)
	return err
}

// UserHasRole reports whether the edge exists. The caller must be
// allowed to view the target user.
func (s *Service) UserHasRole(ctx context.Context, p tenancy.Principal, userID, roleID int64, requestedTenant tenancy.ID) (bool, error) {
	if err := s.authorizeUserTarget(ctx, p, userID, requestedTenant, shared.PermUsersView); err != nil {
		return false, err
	}
	current, err := s.store.ListUserRoleIDs(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("rbac: load user roles: %w", err)
	}
	return containsID(current, roleID), nil
}

// AuthorizeUserRead checks that the principal may inspect the target
// user's role and permission state.
func (s *Service) AuthorizeUserRead(ctx context.Context, p tenancy.Principal, userID int64, requestedTenant tenancy.ID) error {
	return s.authorizeUserTarget(ctx, p, userID, requestedTenant, shared.PermUsersView)
}

// AssignPermissionsToRole grants the permissions on top of the role's
// current set.
func (s *Service) AssignPermissionsToRole(ctx context.Context, p tenancy.Principal, roleID int64, permissionIDs []int64) (SyncResult, error) {
	if len(permissionIDs) == 0 {
		return SyncResult{}, fmt.Errorf("rbac: empty permission list: %w", shared.ErrValidation)
	}
	if _, err := s.authorizeRoleMutation(ctx, p, roleID, shared.PermRolesEdit); err != nil {
		return SyncResult{}, err
	}
	current, err := s.sync.CurrentPermissions(ctx, roleID)
	if err != nil {
		return SyncResult{}, err
	}
	desired := append(append([]int64{}, current...), permissionIDs...)
	result, err := s.sync.Synchronize(ctx, p.UserID, roleID, desired)
	if err != nil {
		return SyncResult{}, err
	}
	s.recordAudit(ctx, p, "rbac.permission.grant", "role", roleID, map[string]any{"added": result.Added})
	s.refreshImpact(ctx, result)
	return result, nil
}

// RemovePermissionFromRole revokes a single permission from the role.
// Revoking an absent permission is a silent no-op.
func (s *Service) RemovePermissionFromRole(ctx context.Context, p tenancy.Principal, roleID, permissionID int64) (SyncResult, error) {
	if _, err := s.authorizeRoleMutation(ctx, p, roleID, shared.PermRolesEdit); err != nil {
		return SyncResult{}, err
	}
	current, err := s.sync.CurrentPermissions(ctx, roleID)
	if err != nil {
		return SyncResult{}, err
	}
	desired := make([]int64, 0, len(current))
	for _, id := range current {
		if id != permissionID {
			desired = append(desired, id)
		}
	}
	result, err := s.sync.Synchronize(ctx, p.UserID, roleID, desired)
	if err != nil {
		return SyncResult{}, err
	}
	if !result.Unchanged() {
		s.recordAudit(ctx, p, "rbac.permission.revoke", "role", roleID, map[string]any{"removed": result.Removed})
		s.refreshImpact(ctx, result)
	}
	return result, nil
}

// RemoveAllPermissionsFromRole strips the role bare.
func (s *Service) RemoveAllPermissionsFromRole(ctx context.Context, p tenancy.Principal, roleID int64) (SyncResult, error) {
	return s.ReplaceRolePermissions(ctx, p, roleID, nil)
}

// ReplaceRolePermissions sets the role's permissions to exactly the
// desired set.
func (s *Service) ReplaceRolePermissions(ctx context.Context, p tenancy.Principal, roleID int64, permissionIDs []int64) (SyncResult, error) {
	if _, err := s.authorizeRoleMutation(ctx, p, roleID, shared.PermRolesEdit); err != nil {
		return SyncResult{}, err
	}
	result, err := s.sync.Synchronize(ctx, p.UserID, roleID, permissionIDs)
	if err != nil {
		return SyncResult{}, err
	}
	if !result.Unchanged() {
		s.recordAudit(ctx, p, "rbac.permission.replace", "role", roleID, map[string]any{"added": result.Added, "removed": result.Removed})
		s.refreshImpact(ctx, result)
	}
	return result, nil
}

// CloneRolePermissions copies the source role's permission set onto the
// target, replacing whatever the target had.
func (s *Service) CloneRolePermissions(ctx context.Context, p tenancy.Principal, sourceRoleID, targetRoleID int64) (SyncResult, error) {
	if _, err := s.authorizeRoleMutation(ctx, p, targetRoleID, shared.PermRolesEdit); err != nil {
		return SyncResult{}, err
	}
	if _, err := s.authorizeRoleTarget(ctx, p, sourceRoleID, shared.PermRolesView); err != nil {
		return SyncResult{}, err
	}
	result, err := s.sync.Clone(ctx, p.UserID, sourceRoleID, targetRoleID)
	if err != nil {
		return SyncResult{}, err
	}
	s.recordAudit(ctx, p, "rbac.permission.clone", "role", targetRoleID, map[string]any{"source_role_id": sourceRoleID})
	s.refreshImpact(ctx, result)
	return result, nil
}

// authorizeRoleTarget loads the role and runs the access guard against
// its ownership. The guard runs even for a missing role so the outward
// signal does not reveal existence to barred callers. System roles pass:
// they are assignable by every tenant.
func (s *Service) authorizeRoleTarget(ctx context.Context, p tenancy.Principal, roleID int64, requiredPermission string) (Role, error) {
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		if authzErr := s.guard.Authorize(ctx, p, GlobalResource, requiredPermission); authzErr != nil {
			return Role{}, authzErr
		}
		return Role{}, fmt.Errorf("rbac: role %d: %w", roleID, err)
	}
	if err := s.guard.Authorize(ctx, p, role.Resource(), requiredPermission); err != nil {
		return Role{}, err
	}
	return role, nil
}

// authorizeRoleMutation is authorizeRoleTarget plus the rule that a
// system role's own grants change only under a superadmin.
func (s *Service) authorizeRoleMutation(ctx context.Context, p tenancy.Principal, roleID int64, requiredPermission string) (Role, error) {
	role, err := s.authorizeRoleTarget(ctx, p, roleID, requiredPermission)
	if err != nil {
		return Role{}, err
	}
	if role.IsSystem && !p.SuperAdmin {
		return Role{}, fmt.Errorf("rbac: system role mutable only by superadmin: %w", shared.ErrForbidden)
	}
	return role, nil
}

// authorizeRoleSet authorizes a bulk user-role replace: the caller must
// be allowed to assign every role in the set. System roles are
// assignable cross-tenant by design.
func (s *Service) authorizeRoleSet(ctx context.Context, p tenancy.Principal, roleIDs []int64, requestedTenant tenancy.ID, requiredPermission string) error {
	if err := s.guard.Authorize(ctx, p, GlobalResource, requiredPermission); err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return nil
	}
	roles, err := s.store.ListRolesByIDs(ctx, roleIDs)
	if err != nil {
		return fmt.Errorf("rbac: load roles: %w", err)
	}
	known := make(map[int64]Role, len(roles))
	for _, r := range roles {
		known[r.ID] = r
	}
	for _, id := range roleIDs {
		role, ok := known[id]
		if !ok {
			return fmt.Errorf("rbac: role %d: %w", id, shared.ErrNotFound)
		}
		if err := s.guard.Authorize(ctx, p, role.Resource(), requiredPermission); err != nil {
			return err
		}
		if err := ensureScope(p, requestedTenant, role.TenantID); err != nil {
			return err
		}
	}
	return nil
}

// ensureScope rejects writes whose target role falls outside the
// effective tenant scope of the request. Shared roles always pass.
func ensureScope(p tenancy.Principal, requested, owner tenancy.ID) error {
	if !tenancy.ResolveScope(p, requested).Contains(owner) {
		return fmt.Errorf("rbac: role outside tenant scope: %w", shared.ErrForbidden)
	}
	return nil
}

// authorizeUserTarget pins every user-directed operation to the target
// user's tenant: the caller needs the permission against that tenant and
// the user must fall inside the effective scope. Platform accounts (the
// sentinel tenant) are touched only by superadmins.
func (s *Service) authorizeUserTarget(ctx context.Context, p tenancy.Principal, userID int64, requestedTenant tenancy.ID, requiredPermission string) error {
	tenant, err := s.store.GetUserTenant(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("rbac: user %d: %w", userID, shared.ErrNotFound)
		}
		return fmt.Errorf("rbac: load user tenant: %w", err)
	}
	if tenant.IsNil() && !p.SuperAdmin {
		return fmt.Errorf("rbac: platform account reachable only by superadmin: %w", shared.ErrForbidden)
	}
	if err := s.guard.Authorize(ctx, p, Resource{TenantID: tenant}, requiredPermission); err != nil {
		return err
	}
	if !tenancy.ResolveScope(p, requestedTenant).Contains(tenant) {
		return fmt.Errorf("rbac: user outside tenant scope: %w", shared.ErrForbidden)
	}
	return nil
}

// refreshImpact asks the background worker to re-warm the advisory
// impact cache for permissions whose edges just changed. Best effort.
func (s *Service) refreshImpact(ctx context.Context, result SyncResult) {
	if s.impact == nil || result.Unchanged() {
		return
	}
	ids := append(append([]int64{}, result.Added...), result.Removed...)
	if err := s.impact.RefreshImpact(ctx, ids); err != nil && s.logger != nil {
		s.logger.Warn("enqueue impact refresh", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, p tenancy.Principal, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("record audit entry", slog.Any("error", err), slog.String("action", action))
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
