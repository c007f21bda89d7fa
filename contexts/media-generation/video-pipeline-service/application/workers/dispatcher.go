package workers

import (
	"context"
	"log/slog"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/application/retry"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

// Handler binds a task name to the component that executes it.
type Handler struct {
	Stage   string
	Policy  retry.Policy
	Execute func(ctx context.Context, task ports.Task) (entities.StepResult, error)
	// Complete runs once per finished task, before the continuation is
	// queued. An error leaves the task unacked for redelivery.
	Complete func(ctx context.Context, task ports.Task, result entities.StepResult) error
}

// Dispatcher is the worker side of the task queue: it claims due tasks, runs
// them through their retry policy and acts on the outcome.
type Dispatcher struct {
	Tasks     ports.TaskSource
	Scheduler application.Scheduler
	Handlers  map[string]Handler
	Clock     ports.Clock
	WorkerID  string
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce claims one batch and returns how many tasks were claimed.
func (d Dispatcher) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(d.Logger)
	limit := d.BatchSize
	if limit <= 0 {
		limit = 10
	}
	workerID := d.WorkerID
	if workerID == "" {
		workerID = "video-pipeline-worker"
	}

	claimed, err := d.Tasks.ClaimDue(ctx, workerID, application.Now(d.Clock), limit)
	if err != nil {
		logger.Error("pipeline task claim failed",
			"event", "pipeline_task_claim_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"worker_id", workerID,
			"error", err.Error(),
		)
		return 0, err
	}

	for _, task := range claimed {
		if ctx.Err() != nil {
			return len(claimed), ctx.Err()
		}
		if err := d.Dispatch(ctx, task); err != nil {
			logger.Warn("pipeline task left for redelivery",
				"event", "pipeline_task_unacked",
				"module", "media-generation/video-pipeline-service",
				"layer", "worker",
				"task_id", task.TaskID,
				"task_name", task.Name,
				"run_id", task.RunID,
				"error", retry.RedactString(err.Error()),
			)
		}
	}
	return len(claimed), nil
}

// Dispatch handles one claimed task. A nil return means the task was acked.
func (d Dispatcher) Dispatch(ctx context.Context, task ports.Task) error {
	logger := application.ResolveLogger(d.Logger)
	handler, ok := d.Handlers[task.Name]
	if !ok {
		logger.Warn("pipeline task has no handler, dropping",
			"event", "pipeline_task_unknown",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"task_id", task.TaskID,
			"task_name", task.Name,
		)
		return d.ack(ctx, task)
	}

	outcome := handler.Policy.Run(ctx, retry.Call{
		Stage:   handler.Stage,
		RunID:   task.RunID,
		TaskID:  task.TaskID,
		Attempt: task.Attempt,
		Input:   task.Payload,
	}, func(ctx context.Context) (entities.StepResult, error) {
		return handler.Execute(ctx, task)
	})

	switch outcome.Action {
	case retry.ActionPassThrough:
		return outcome.Err
	case retry.ActionRetry:
		if _, err := d.Scheduler.Reschedule(ctx, task, outcome.Delay); err != nil {
			return err
		}
		return d.ack(ctx, task)
	}

	result := outcome.Result
	if result.Superseded {
		logger.Debug("pipeline task superseded",
			"event", "pipeline_task_superseded",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"task_id", task.TaskID,
			"task_name", task.Name,
			"run_id", task.RunID,
		)
		return d.ack(ctx, task)
	}
	if handler.Complete != nil {
		if err := handler.Complete(ctx, task, result); err != nil {
			return err
		}
	}
	if task.Continuation != "" {
		if _, err := d.Scheduler.Schedule(ctx, task.Continuation, task.RunID, result, ""); err != nil {
			return err
		}
	}
	return d.ack(ctx, task)
}

func (d Dispatcher) ack(ctx context.Context, task ports.Task) error {
	return d.Tasks.Ack(ctx, task.TaskID, application.Now(d.Clock))
}
