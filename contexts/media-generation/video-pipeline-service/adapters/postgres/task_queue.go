package postgresadapter

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

const defaultTaskLease = 15 * time.Minute

// TaskQueue is the durable task queue shared by API and worker processes.
// Claims use FOR UPDATE SKIP LOCKED so concurrent workers never take the
// same row.
type TaskQueue struct {
	db     *gorm.DB
	lease  time.Duration
	logger *slog.Logger
}

func NewTaskQueue(db *gorm.DB, lease time.Duration, logger *slog.Logger) *TaskQueue {
	if lease <= 0 {
		lease = defaultTaskLease
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskQueue{db: db, lease: lease, logger: logger}
}

func (q *TaskQueue) Enqueue(ctx context.Context, task ports.Task) error {
	row := taskModelFromPort(task)
	return q.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
}

func (q *TaskQueue) ClaimDue(ctx context.Context, workerID string, now time.Time, limit int) ([]ports.Task, error) {
	if limit <= 0 {
		limit = 1
	}
	now = now.UTC()
	leaseUntil := now.Add(q.lease)

	var claimed []ports.Task
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []taskModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("not_before <= ?", now).
			Where("status = ? OR (status = ? AND lease_until <= ?)", taskStatusPending, taskStatusClaimed, now).
			Order("not_before ASC").
			Order("task_id ASC").
			Limit(limit).
			Find(&rows).
			Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.TaskID)
			if row.Status == taskStatusClaimed {
				q.logger.Warn("task lease expired, redelivering",
					"event", "pipeline_task_lease_expired",
					"module", "media-generation/video-pipeline-service",
					"layer", "adapter",
					"task_id", row.TaskID,
					"previous_worker", row.ClaimedBy,
				)
			}
		}
		if err := tx.Model(&taskModel{}).
			Where("task_id IN ?", ids).
			Updates(map[string]any{
				"status":      taskStatusClaimed,
				"claimed_by":  workerID,
				"lease_until": leaseUntil,
			}).
			Error; err != nil {
			return err
		}

		claimed = make([]ports.Task, 0, len(rows))
		for _, row := range rows {
			claimed = append(claimed, row.toPort())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (q *TaskQueue) Ack(ctx context.Context, taskID string, now time.Time) error {
	return q.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"status":   taskStatusDone,
			"acked_at": now.UTC(),
		}).
		Error
}
