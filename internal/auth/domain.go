// Package auth authenticates credentials and binds principals to
// sessions.
package auth

import (
	"time"

	"github.com/minerva-sms/minerva/internal/tenancy"
)

// Account represents a login-capable user record.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	IsActive     bool
	IsSuperAdmin bool
	TenantID     tenancy.ID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal derives the request principal from the account.
func (a Account) Principal() tenancy.Principal {
	return tenancy.Principal{
		UserID:     a.ID,
		Tenant:     a.TenantID,
		SuperAdmin: a.IsSuperAdmin,
	}
}
