// Package rbac implements the tenant-scoped role-based authorization core:
// tenant scoping, role and permission membership, effective permission
// sets, diff-based synchronization and permission impact analysis.
package rbac

import (
	"time"

	"github.com/minerva-sms/minerva/internal/tenancy"
)

// Permission is a global, tenant-independent catalog entry. The key is a
// stable, case-sensitive identifier unique across the whole system.
type Permission struct {
	ID          int64
	Key         string
	DisplayName string
	GroupName   string
	Description string
}

// Role bundles permissions. A system role lives in the shared catalog
// (sentinel tenant), is usable by every tenant and mutable only by a
// superadmin. A tenant role belongs to exactly one tenant and its name is
// unique within it.
type Role struct {
	ID          int64
	Name        string
	Description string
	IsSystem    bool
	TenantID    tenancy.ID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RetiredAt   *time.Time
}

// Retired reports whether the role has been soft-retired.
func (r Role) Retired() bool { return r.RetiredAt != nil }

// RolePermission is a grant edge. At most one edge exists per
// (role, permission) pair.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
	CreatedBy    int64
	CreatedAt    time.Time
}

// UserRole links a user to a role. At most one edge exists per
// (user, role) pair.
type UserRole struct {
	UserID    int64
	RoleID    int64
	CreatedBy int64
	CreatedAt time.Time
}

// SyncResult reports the delta applied by a diff synchronization.
type SyncResult struct {
	Added   []int64
	Removed []int64
}

// Unchanged reports whether the synchronization was a no-op.
func (r SyncResult) Unchanged() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// UserImpact describes one active user affected by a permission, with
// every role that grants it to them.
type UserImpact struct {
	UserID    int64
	UserName  string
	RoleNames []string
}
