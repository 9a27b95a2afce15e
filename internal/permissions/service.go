// Package permissions serves the global, tenant-independent permission
// catalog. Entries are created and retired out of band; this package
// only reads them.
package permissions

import (
	"context"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/minerva-sms/minerva/internal/rbac"
)

// RepositoryPort defines data access methods for the catalog.
type RepositoryPort interface {
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
}

// Group is a display grouping of catalog entries.
type Group struct {
	Name        string
	Permissions []rbac.Permission
}

// Service handles catalog reads.
type Service struct {
	repo  RepositoryPort
	title cases.Caser
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, title: cases.Title(language.English)}
}

// ListPermissions returns the whole catalog ordered by key.
func (s *Service) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// ListGrouped returns the catalog bucketed by group name for admin
// screens. Groups without a stored name fall under "General".
func (s *Service) ListGrouped(ctx context.Context) ([]Group, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	buckets := make(map[string][]rbac.Permission)
	for _, p := range perms {
		name := p.GroupName
		if name == "" {
			name = "general"
		}
		buckets[name] = append(buckets[name], p)
	}
	groups := make([]Group, 0, len(buckets))
	for name, members := range buckets {
		sort.Slice(members, func(i, j int) bool { return members[i].Key < members[j].Key })
		groups = append(groups, Group{Name: s.title.String(name), Permissions: members})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}
