package rbac

import (
	"context"

	"github.com/minerva-sms/minerva/internal/tenancy"
)

// ActiveUserRole is one (active user, role) pairing returned by the store
// for impact analysis.
type ActiveUserRole struct {
	UserID   int64
	UserName string
	RoleName string
}

// Store is the catalog surface the core reads and writes through. It is
// implemented by the PostgreSQL repository; tests substitute an in-memory
// double.
type Store interface {
	ListUserRoleIDs(ctx context.Context, userID int64) ([]int64, error)
	ListRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	ListPermissionKeysForRoles(ctx context.Context, roleIDs []int64) ([]string, error)
	GetRole(ctx context.Context, roleID int64) (Role, error)
	ListRolesByIDs(ctx context.Context, ids []int64) ([]Role, error)
	GetUserTenant(ctx context.Context, userID int64) (tenancy.ID, error)
	ListPermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error)
	ListPermissionIDs(ctx context.Context) ([]int64, error)
	ListRoleIDsWithPermission(ctx context.Context, permissionID int64) ([]int64, error)
	ListActiveUsersByRoles(ctx context.Context, roleIDs []int64) ([]ActiveUserRole, error)

	// WithTx runs fn inside one transaction; every edge mutation issued
	// through the TxStore commits or rolls back as a unit.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
}

// TxStore exposes the edge mutations available inside a transaction.
type TxStore interface {
	InsertRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64, createdBy int64) error
	DeleteRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	InsertUserRoles(ctx context.Context, userID int64, roleIDs []int64, createdBy int64) error
	DeleteUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
}
