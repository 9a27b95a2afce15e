package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/minerva-sms/minerva/internal/rbac"
	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/tenancy"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context, scope tenancy.Scope) ([]rbac.Role, error)
	GetRole(ctx context.Context, id int64) (rbac.Role, error)
	CreateRole(ctx context.Context, name, description string, isSystem bool, tenantID tenancy.ID) (rbac.Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (rbac.Role, error)
	RetireRole(ctx context.Context, id int64) error
}

// Service handles role business logic.
type Service struct {
	repo  RepositoryPort
	guard *rbac.Guard
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, guard *rbac.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// CreateRoleInput carries a role creation request.
type CreateRoleInput struct {
	Name        string
	Description string
	IsSystem    bool
	TenantID    tenancy.ID
}

// ListRoles returns the roles visible to the principal, scoped to their
// tenant (or to the requested tenant for a superadmin).
func (s *Service) ListRoles(ctx context.Context, p tenancy.Principal, requestedTenant tenancy.ID) ([]rbac.Role, error) {
	if err := s.guard.Authorize(ctx, p, rbac.GlobalResource, shared.PermRolesView); err != nil {
		return nil, err
	}
	if !p.Bound() {
		return nil, fmt.Errorf("roles: principal without tenant: %w", shared.ErrForbidden)
	}
	return s.repo.ListRoles(ctx, tenancy.ResolveScope(p, requestedTenant))
}

// GetRole fetches one role if it is visible to the principal.
func (s *Service) GetRole(ctx context.Context, p tenancy.Principal, id int64) (rbac.Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return rbac.Role{}, err
	}
	if err := s.guard.Authorize(ctx, p, role.Resource(), shared.PermRolesView); err != nil {
		return rbac.Role{}, err
	}
	return role, nil
}

// CreateRole creates a tenant-private role, or a shared system role when
// requested by a superadmin. A superadmin creating a tenant role must
// name the target tenant explicitly.
func (s *Service) CreateRole(ctx context.Context, p tenancy.Principal, input CreateRoleInput) (rbac.Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return rbac.Role{}, fmt.Errorf("roles: name required: %w", shared.ErrValidation)
	}
	if input.IsSystem {
		if !p.SuperAdmin {
			return rbac.Role{}, fmt.Errorf("roles: system roles are superadmin-only: %w", shared.ErrForbidden)
		}
		return s.repo.CreateRole(ctx, name, strings.TrimSpace(input.Description), true, tenancy.Nil)
	}
	tenantID := input.TenantID
	if p.SuperAdmin {
		if tenantID.IsNil() {
			return rbac.Role{}, fmt.Errorf("roles: tenant id required for superadmin create: %w", shared.ErrValidation)
		}
	} else {
		// Tenant admins always create in their own tenant.
		tenantID = p.Tenant
	}
	if err := s.guard.Authorize(ctx, p, rbac.Resource{TenantID: tenantID}, shared.PermRolesEdit); err != nil {
		return rbac.Role{}, err
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(input.Description), false, tenantID)
}

// UpdateRole renames a role or changes its description.
func (s *Service) UpdateRole(ctx context.Context, p tenancy.Principal, id int64, name, description string) (rbac.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return rbac.Role{}, fmt.Errorf("roles: name required: %w", shared.ErrValidation)
	}
	if err := s.authorizeMutation(ctx, p, id); err != nil {
		return rbac.Role{}, err
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// RetireRole soft-retires a role.
func (s *Service) RetireRole(ctx context.Context, p tenancy.Principal, id int64) error {
	if err := s.authorizeMutation(ctx, p, id); err != nil {
		return err
	}
	return s.repo.RetireRole(ctx, id)
}

func (s *Service) authorizeMutation(ctx context.Context, p tenancy.Principal, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		if authzErr := s.guard.Authorize(ctx, p, rbac.GlobalResource, shared.PermRolesEdit); authzErr != nil {
			return authzErr
		}
		return err
	}
	if err := s.guard.Authorize(ctx, p, role.Resource(), shared.PermRolesEdit); err != nil {
		return err
	}
	if role.IsSystem && !p.SuperAdmin {
		return fmt.Errorf("roles: system role mutable only by superadmin: %w", shared.ErrForbidden)
	}
	return nil
}
