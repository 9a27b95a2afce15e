package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minerva-sms/minerva/internal/platform/db"
	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/tenancy"
)

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// ListUserRoleIDs returns the ids of every role the user holds.
func (r *Repository) ListUserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// ListRolePermissionIDs returns the permission ids granted to the role.
func (r *Repository) ListRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1 ORDER BY permission_id`, roleID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// ListPermissionKeysForRoles returns the distinct permission keys granted
// through any of the roles.
func (r *Repository) ListPermissionKeysForRoles(ctx context.Context, roleIDs []int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.key
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
		ORDER BY p.key`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, roleID int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, is_system, tenant_id, created_at, updated_at, retired_at
		FROM roles WHERE id = $1`, roleID)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// ListRolesByIDs fetches roles by id; missing ids are simply absent from
// the result.
func (r *Repository) ListRolesByIDs(ctx context.Context, ids []int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, is_system, tenant_id, created_at, updated_at, retired_at
		FROM roles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetUserTenant returns the tenant owning the user account.
func (r *Repository) GetUserTenant(ctx context.Context, userID int64) (tenancy.ID, error) {
	var tenantID int64
	err := r.pool.QueryRow(ctx, `SELECT tenant_id FROM users WHERE id = $1`, userID).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenancy.Nil, shared.ErrNotFound
		}
		return tenancy.Nil, err
	}
	return tenancy.ID(tenantID), nil
}

// ListPermissionsByIDs fetches catalog entries by id.
func (r *Repository) ListPermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, key, display_name, group_name, description
		FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.DisplayName, &p.GroupName, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ListPermissionIDs returns every catalog id.
func (r *Repository) ListPermissionIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM permissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// ListRoleIDsWithPermission returns every role currently granting the
// permission.
func (r *Repository) ListRoleIDsWithPermission(ctx context.Context, permissionID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM role_permissions WHERE permission_id = $1 ORDER BY role_id`, permissionID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// ListActiveUsersByRoles returns (active user, role name) pairs for the
// given roles.
func (r *Repository) ListActiveUsersByRoles(ctx context.Context, roleIDs []int64) ([]ActiveUserRole, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.full_name, ro.name
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id AND u.is_active
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.role_id = ANY($1)
		ORDER BY u.id, ro.name`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []ActiveUserRole
	for rows.Next() {
		var row ActiveUserRole
		if err := rows.Scan(&row.UserID, &row.UserName, &row.RoleName); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) InsertRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64, createdBy int64) error {
	for _, pid := range permissionIDs {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id, created_by, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, pid, createdBy); err != nil {
			return fmt.Errorf("insert role permission %d: %w", pid, err)
		}
	}
	return nil
}

func (t *txRepository) DeleteRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = ANY($2)`, roleID, permissionIDs)
	return err
}

func (t *txRepository) InsertUserRoles(ctx context.Context, userID int64, roleIDs []int64, createdBy int64) error {
	for _, rid := range roleIDs {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id, created_by, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (user_id, role_id) DO NOTHING`, userID, rid, createdBy); err != nil {
			return fmt.Errorf("insert user role %d: %w", rid, err)
		}
	}
	return nil
}

func (t *txRepository) DeleteUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = ANY($2)`, userID, roleIDs)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	var tenantID int64
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &tenantID, &role.CreatedAt, &role.UpdatedAt, &role.RetiredAt); err != nil {
		return Role{}, err
	}
	role.TenantID = tenancy.ID(tenantID)
	return role, nil
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
