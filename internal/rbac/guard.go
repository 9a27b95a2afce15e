package rbac

import (
	"context"
	"fmt"

	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/tenancy"
)

// Resource is the tenant ownership of the record a caller wants to touch.
// System resources (shared roles, the global permission catalog) are
// owned by the sentinel tenant.
type Resource struct {
	TenantID tenancy.ID
	System   bool
}

// Resource returns the role's ownership for authorization.
func (r Role) Resource() Resource {
	return Resource{TenantID: r.TenantID, System: r.IsSystem}
}

// GlobalResource is used for records in the shared catalog.
var GlobalResource = Resource{System: true}

// Guard is the single gate every write path runs through before
// mutating. The superadmin bypass and the tenant-mismatch rule live here
// and nowhere else.
type Guard struct {
	resolver *Resolver
}

// NewGuard constructs a Guard.
func NewGuard(resolver *Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// Authorize checks, in order: superadmin bypass, required permission,
// tenant ownership. The returned error renders the same outward signal
// whether the permission is missing or the tenant mismatches, so a
// barred caller cannot probe for resource existence.
func (g *Guard) Authorize(ctx context.Context, p tenancy.Principal, res Resource, requiredPermission string) error {
	if p.SuperAdmin {
		return nil
	}
	if !p.Bound() {
		// Absent tenant claim means no access, not sentinel-wide access.
		return fmt.Errorf("rbac: principal without tenant: %w", shared.ErrForbidden)
	}
	ok, err := g.resolver.HasPermission(ctx, p, requiredPermission)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rbac: missing permission %s: %w", requiredPermission, shared.ErrForbidden)
	}
	if !res.System && !res.TenantID.IsNil() && res.TenantID != p.Tenant {
		return fmt.Errorf("rbac: tenant mismatch: %w", shared.ErrForbidden)
	}
	return nil
}
