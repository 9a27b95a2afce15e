// Package tenancy models the isolation boundary between schools and the
// rules that pin a request to one of them.
package tenancy

// ID identifies a tenant (a school). The zero value is the sentinel
// meaning "no tenant / all tenants" and is reserved for shared catalog
// entries and superadmin-wide queries.
type ID int64

// Nil is the sentinel tenant id.
const Nil ID = 0

// IsNil reports whether the id is the sentinel.
func (id ID) IsNil() bool { return id == Nil }

// Principal is the authenticated actor behind a request. A tenant user is
// bound to exactly one tenant; a superadmin is bound to none and may act
// on any tenant.
type Principal struct {
	UserID     int64
	Tenant     ID
	SuperAdmin bool
}

// Bound reports whether the principal carries a usable tenant binding.
// A non-superadmin principal without one is treated as having no access,
// not as having sentinel-wide access.
func (p Principal) Bound() bool {
	return p.SuperAdmin || !p.Tenant.IsNil()
}

// Scope is the effective tenant window of a request: one tenant, or all
// of them for superadmin-wide reads.
type Scope struct {
	Tenant ID
	All    bool
}

// ScopeAll spans every tenant.
var ScopeAll = Scope{All: true}

// ScopeOf narrows the scope to a single tenant.
func ScopeOf(id ID) Scope { return Scope{Tenant: id} }

// Contains reports whether a record owned by the given tenant falls
// inside the scope. Sentinel-owned (shared) records are visible in every
// scope.
func (s Scope) Contains(owner ID) bool {
	if s.All || owner.IsNil() {
		return true
	}
	return s.Tenant == owner
}

// ResolveScope determines which tenant(s) the request may touch. A
// superadmin gets the requested tenant, or everything when none was
// requested. A tenant user is always pinned to their own tenant; any
// requested value is ignored rather than rejected, cross-tenant writes
// are refused later by the access guard.
func ResolveScope(p Principal, requested ID) Scope {
	if p.SuperAdmin {
		if requested.IsNil() {
			return ScopeAll
		}
		return ScopeOf(requested)
	}
	return ScopeOf(p.Tenant)
}
