// Package roles manages the role catalog: tenant-private roles and the
// shared system roles every school can assign.
package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minerva-sms/minerva/internal/platform/db"
	"github.com/minerva-sms/minerva/internal/rbac"
	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/tenancy"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, is_system, tenant_id, created_at, updated_at, retired_at`

// ListRoles returns the non-retired roles visible in the scope: the
// shared system roles plus, for a single-tenant scope, that tenant's own
// roles.
func (r *Repository) ListRoles(ctx context.Context, scope tenancy.Scope) ([]rbac.Role, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if scope.All {
		rows, err = r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE retired_at IS NULL ORDER BY is_system DESC, name`)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE retired_at IS NULL AND (is_system OR tenant_id = $1) ORDER BY is_system DESC, name`, int64(scope.Tenant))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []rbac.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id int64) (rbac.Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, shared.ErrNotFound
		}
		return rbac.Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role. A duplicate (tenant, name) pair maps to
// ErrConflict via the partial unique index.
func (r *Repository) CreateRole(ctx context.Context, name, description string, isSystem bool, tenantID tenancy.ID) (rbac.Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, is_system, tenant_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING `+roleColumns, name, description, isSystem, int64(tenantID))
	role, err := scanRole(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return rbac.Role{}, fmt.Errorf("roles: duplicate role name %q: %w", name, shared.ErrConflict)
		}
		return rbac.Role{}, err
	}
	return role, nil
}

// UpdateRole changes name and description.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name, description string) (rbac.Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1 AND retired_at IS NULL
		RETURNING `+roleColumns, id, name, description)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, shared.ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return rbac.Role{}, fmt.Errorf("roles: duplicate role name %q: %w", name, shared.ErrConflict)
		}
		return rbac.Role{}, err
	}
	return role, nil
}

// RetireRole soft-retires a role. Roles are never hard-deleted while
// referenced.
func (r *Repository) RetireRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE roles SET retired_at = NOW(), updated_at = NOW() WHERE id = $1 AND retired_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (rbac.Role, error) {
	var role rbac.Role
	var tenantID int64
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &tenantID, &role.CreatedAt, &role.UpdatedAt, &role.RetiredAt); err != nil {
		return rbac.Role{}, err
	}
	role.TenantID = tenancy.ID(tenantID)
	return role, nil
}
