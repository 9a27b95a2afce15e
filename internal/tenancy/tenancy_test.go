package tenancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveScope(t *testing.T) {
	superadmin := Principal{UserID: 1, SuperAdmin: true}
	teacher := Principal{UserID: 2, Tenant: 7}

	cases := []struct {
		name      string
		principal Principal
		requested ID
		want      Scope
	}{
		{"superadmin without target spans all tenants", superadmin, Nil, ScopeAll},
		{"superadmin with target is pinned to it", superadmin, 42, ScopeOf(42)},
		{"tenant user ignores requested tenant", teacher, 42, ScopeOf(7)},
		{"tenant user without request keeps own tenant", teacher, Nil, ScopeOf(7)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveScope(tc.principal, tc.requested))
		})
	}
}

func TestScopeContains(t *testing.T) {
	assert.True(t, ScopeAll.Contains(5))
	assert.True(t, ScopeOf(5).Contains(5))
	assert.False(t, ScopeOf(5).Contains(6))
	// Shared catalog records are visible in every scope.
	assert.True(t, ScopeOf(5).Contains(Nil))
}

func TestPrincipalBound(t *testing.T) {
	assert.True(t, Principal{UserID: 1, SuperAdmin: true}.Bound())
	assert.True(t, Principal{UserID: 2, Tenant: 3}.Bound())
	// A tenant user whose tenant claim is absent has no access at all.
	assert.False(t, Principal{UserID: 4}.Bound())
}
