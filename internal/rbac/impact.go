package rbac

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	impactCountTTL    = 60 * time.Second
	impactSnapshotTTL = 15 * time.Minute
)

// Analyzer answers "who is affected if this permission goes away".
// Results are advisory, shown to operators before a revoke; they never
// block the revoke itself.
type Analyzer struct {
	store  Store
	cache  *redis.Client
	flight singleflight.Group
}

// NewAnalyzer constructs an Analyzer. The redis client is optional; with
// a nil client counts are always computed from the store.
func NewAnalyzer(store Store, cache *redis.Client) *Analyzer {
	return &Analyzer{store: store, cache: cache}
}

// UsersWithPermission lists the active users who currently hold the
// permission through at least one role, one record per user with every
// contributing role name.
func (a *Analyzer) UsersWithPermission(ctx context.Context, permissionID int64) ([]UserImpact, error) {
	roleIDs, err := a.store.ListRoleIDsWithPermission(ctx, permissionID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load roles with permission: %w", err)
	}
	if len(roleIDs) == 0 {
		return []UserImpact{}, nil
	}
	rows, err := a.store.ListActiveUsersByRoles(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("rbac: load users by roles: %w", err)
	}
	byUser := make(map[int64]*UserImpact)
	order := make([]int64, 0, len(rows))
	for _, row := range rows {
		impact, ok := byUser[row.UserID]
		if !ok {
			impact = &UserImpact{UserID: row.UserID, UserName: row.UserName}
			byUser[row.UserID] = impact
			order = append(order, row.UserID)
		}
		if !containsName(impact.RoleNames, row.RoleName) {
			impact.RoleNames = append(impact.RoleNames, row.RoleName)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	result := make([]UserImpact, 0, len(order))
	for _, id := range order {
		sort.Strings(byUser[id].RoleNames)
		result = append(result, *byUser[id])
	}
	return result, nil
}

// CountUsersWithPermission returns the number of distinct active users
// holding the permission. The count is cached briefly and concurrent
// callers for the same permission share one computation; only this
// advisory number is ever cached, never a grant decision.
func (a *Analyzer) CountUsersWithPermission(ctx context.Context, permissionID int64) (int, error) {
	key := impactCountKey(permissionID)
	if a.cache != nil {
		if cached, err := a.cache.Get(ctx, key).Int(); err == nil {
			return cached, nil
		}
	}
	v, err, _ := a.flight.Do(key, func() (any, error) {
		impacts, err := a.UsersWithPermission(ctx, permissionID)
		if err != nil {
			return 0, err
		}
		count := len(impacts)
		if a.cache != nil {
			_ = a.cache.Set(ctx, key, count, impactCountTTL).Err()
		}
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// SnapshotImpactCounts recomputes the cached impact count for the given
// permissions, or for the whole catalog when none are named. Run
// periodically by the background worker so admin screens rarely pay for
// a cold computation.
func (a *Analyzer) SnapshotImpactCounts(ctx context.Context, permissionIDs []int64) error {
	if a.cache == nil {
		return nil
	}
	ids := permissionIDs
	if len(ids) == 0 {
		var err error
		ids, err = a.store.ListPermissionIDs(ctx)
		if err != nil {
			return fmt.Errorf("rbac: list permission ids: %w", err)
		}
	}
	for _, id := range ids {
		impacts, err := a.UsersWithPermission(ctx, id)
		if err != nil {
			return err
		}
		if err := a.cache.Set(ctx, impactCountKey(id), len(impacts), impactSnapshotTTL).Err(); err != nil {
			return fmt.Errorf("rbac: cache impact count: %w", err)
		}
	}
	return nil
}

func impactCountKey(permissionID int64) string {
	return "rbac:impact:count:" + strconv.FormatInt(permissionID, 10)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
