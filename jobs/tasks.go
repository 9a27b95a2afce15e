// Package jobs wires background tasks processed by the Asynq worker.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskImpactSnapshot refreshes the advisory permission impact counts.
	TaskImpactSnapshot = "rbac:impact_snapshot"
)

// ImpactSnapshotPayload scopes a snapshot run. An empty PermissionIDs
// slice refreshes the whole catalog.
type ImpactSnapshotPayload struct {
	PermissionIDs []int64 `json:"permission_ids,omitempty"`
}

// NewImpactSnapshotTask constructs an Asynq task.
func NewImpactSnapshotTask(payload ImpactSnapshotPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImpactSnapshot, data), nil
}

// ImpactSnapshotter recomputes and caches impact counts.
type ImpactSnapshotter interface {
	SnapshotImpactCounts(ctx context.Context, permissionIDs []int64) error
}

// NewImpactSnapshotHandler builds the handler for TaskImpactSnapshot.
func NewImpactSnapshotHandler(snapshotter ImpactSnapshotter) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ImpactSnapshotPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return snapshotter.SnapshotImpactCounts(ctx, payload.PermissionIDs)
	}
}
