package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

const (
	TaskGeneratePrompt       = "pipeline.prompt.generate"
	TaskStartImageEdit       = "pipeline.image_edit.start"
	TaskEditImage            = "pipeline.image_edit.run"
	TaskStartVideoGeneration = "pipeline.video.start"
	TaskGenerateVideo        = "pipeline.video.generate"
	TaskNotify               = "pipeline.notify"
)

// Scheduler is the queue client handed to every component that starts work.
type Scheduler struct {
	Queue ports.TaskQueue
	Clock ports.Clock
}

// TaskKey is the id of the task a run holds for name at attempt. A run
// schedules each task name at most once, and queues ignore a known id, so a
// redelivered task that schedules again cannot fork the chain.
func TaskKey(runID string, name string, attempt int) string {
	if attempt <= 0 {
		return runID + ":" + name
	}
	return fmt.Sprintf("%s:%s:%d", runID, name, attempt)
}

// Schedule enqueues name for runID. When continuation is set, the runtime
// enqueues it with this task's StepResult once the task completes.
func (s Scheduler) Schedule(
	ctx context.Context,
	name string,
	runID string,
	payload any,
	continuation string,
) (ports.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ports.Task{}, fmt.Errorf("%w: encode %s payload: %w", domainerrors.ErrInvalidTaskPayload, name, err)
	}
	now := Now(s.Clock)
	task := ports.Task{
		TaskID:       TaskKey(runID, name, 0),
		Name:         name,
		RunID:        runID,
		Continuation: continuation,
		Payload:      raw,
		NotBefore:    now,
		EnqueuedAt:   now,
	}
	if err := s.Queue.Enqueue(ctx, task); err != nil {
		return ports.Task{}, fmt.Errorf("%w: %w", domainerrors.ErrQueueUnavailable, err)
	}
	return task, nil
}

// Reschedule enqueues the next attempt of task after delay.
func (s Scheduler) Reschedule(ctx context.Context, task ports.Task, delay time.Duration) (ports.Task, error) {
	next := task.Retry(TaskKey(task.RunID, task.Name, task.Attempt+1), Now(s.Clock), delay)
	if err := s.Queue.Enqueue(ctx, next); err != nil {
		return ports.Task{}, fmt.Errorf("%w: %w", domainerrors.ErrQueueUnavailable, err)
	}
	return next, nil
}

func Now(clock ports.Clock) time.Time {
	if clock != nil {
		return clock.Now().UTC()
	}
	return time.Now().UTC()
}
