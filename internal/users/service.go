package users

import (
	"context"
	"fmt"

	"github.com/minerva-sms/minerva/internal/rbac"
	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/tenancy"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, scope tenancy.Scope, page shared.Pagination) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
}

// Service handles user listing business logic.
type Service struct {
	repo  RepositoryPort
	guard *rbac.Guard
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, guard *rbac.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// ListUsers returns one page of the users visible to the principal's
// effective scope.
func (s *Service) ListUsers(ctx context.Context, p tenancy.Principal, requestedTenant tenancy.ID, page, perPage int) ([]User, shared.Pagination, error) {
	if err := s.guard.Authorize(ctx, p, rbac.GlobalResource, shared.PermUsersView); err != nil {
		return nil, shared.Pagination{}, err
	}
	pg := shared.NewPagination(page, perPage, 0)
	users, total, err := s.repo.ListUsers(ctx, tenancy.ResolveScope(p, requestedTenant), pg)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(pg.Page, pg.PerPage, total), nil
}

// GetUser fetches one user, refusing cross-tenant reads for tenant-bound
// callers.
func (s *Service) GetUser(ctx context.Context, p tenancy.Principal, id int64) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.guard.Authorize(ctx, p, rbac.Resource{TenantID: user.TenantID}, shared.PermUsersView); err != nil {
		return User{}, fmt.Errorf("users: %w", err)
	}
	return user, nil
}
