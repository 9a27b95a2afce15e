package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const userColumns = `id, email, full_name, is_active, tenant_id, created_at, updated_at`

// ListUsers returns one page of users inside the scope ordered by name,
// together with the total count for the scope.
func (r *Repository) ListUsers(ctx context.Context, scope tenancy.Scope, page shared.Pagination) ([]User, int, error) {
	var (
		rows  pgx.Rows
		total int
		err   error
	)
	offset := (page.Page - 1) * page.PerPage
	if scope.All {
		if err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY full_name LIMIT $1 OFFSET $2`, page.PerPage, offset)
	} else {
		if err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1`, int64(scope.Tenant)).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY full_name LIMIT $2 OFFSET $3`, int64(scope.Tenant), page.PerPage, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var result []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, user)
	}
	return result, total, rows.Err()
}

// GetUser fetches one user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var tenantID int64
	if err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.IsActive, &tenantID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.TenantID = tenancy.ID(tenantID)
	return user, nil
}
