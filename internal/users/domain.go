// Package users lists the accounts administrators manage role
// assignments for.
package users

import (
	"time"

	"github.com/minerva-sms/minerva/internal/tenancy"
)

// User represents an account visible to administrators.
type User struct {
	ID        int64
	Email     string
	FullName  string
	IsActive  bool
	TenantID  tenancy.ID
	CreatedAt time.Time
	UpdatedAt time.Time
}
