package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iload-dev/iload-api/pkg/jobs"
)

// JobTypeGroupScan identifies incremental conflict scan jobs.
const JobTypeGroupScan = "conflict_group_scan"

// NewConflictScanQueue builds the worker queue that serves incremental
// conflict scans enqueued by schedule mutations.
func NewConflictScanQueue(svc *ConflictService, cfg jobs.QueueConfig) *jobs.Queue {
	return jobs.NewQueue("conflict-scan", func(ctx context.Context, job jobs.Job) error {
		scope, ok := job.Payload.(GroupScope)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
		}
		_, err := svc.RunGroupScan(ctx, scope)
		return err
	}, cfg)
}

// ConflictScanTrigger hands scan scopes to the queue. Schedule mutations use
// it so conflict recomputation stays off the request path.
type ConflictScanTrigger struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewConflictScanTrigger wraps a queue for use by the schedule service.
func NewConflictScanTrigger(queue *jobs.Queue, logger *zap.Logger) *ConflictScanTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictScanTrigger{queue: queue, logger: logger}
}

// EnqueueGroupScan schedules an incremental scan for the given scope.
func (t *ConflictScanTrigger) EnqueueGroupScan(scope GroupScope) error {
	if t == nil || t.queue == nil {
		return nil
	}
	err := t.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeGroupScan,
		Payload: scope,
	})
	if err != nil {
		t.logger.Warn("failed to enqueue conflict scan",
			zap.String("day", scope.DayOfWeek),
			zap.String("room_id", scope.RoomID),
			zap.Error(err),
		)
	}
	return err
}
