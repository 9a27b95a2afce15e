package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionSetMembership(t *testing.T) {
	set := NewPermissionSet("a", "b", "b")

	assert.True(t, set.Has("a"))
	assert.False(t, set.Has("c"))
	assert.True(t, set.HasAny("c", "b"))
	assert.False(t, set.HasAny("c", "d"))
	assert.True(t, set.HasAll("a", "b"))
	assert.False(t, set.HasAll("a", "c"))
	assert.True(t, set.HasAll())
	assert.Equal(t, []string{"a", "b"}, set.Keys())
}

func TestDiffIDs(t *testing.T) {
	tests := []struct {
		name       string
		current    []int64
		desired    []int64
		wantAdd    []int64
		wantRemove []int64
	}{
		{"disjoint", []int64{1, 2}, []int64{3, 4}, []int64{3, 4}, []int64{1, 2}},
		{"overlap", []int64{1, 2, 3}, []int64{2, 3, 4}, []int64{4}, []int64{1}},
		{"identical", []int64{1, 2}, []int64{2, 1}, nil, nil},
		{"empty desired", []int64{1, 2}, nil, nil, []int64{1, 2}},
		{"empty current", nil, []int64{5}, []int64{5}, nil},
		{"duplicate desired", []int64{1}, []int64{2, 2, 1, 1}, []int64{2}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			add, remove := diffIDs(tc.current, tc.desired)
			assert.Equal(t, tc.wantAdd, add)
			assert.Equal(t, tc.wantRemove, remove)
		})
	}
}
