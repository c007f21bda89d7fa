package workers

import (
	"context"
	"errors"
	"log/slog"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

// Notifier emails the requester once a run completes. Delivery failures never
// change the run's status.
type Notifier struct {
	Runs   ports.RunRepository
	Sender ports.NotificationSender
	Clock  ports.Clock
	Logger *slog.Logger
}

func (n Notifier) Execute(ctx context.Context, task ports.Task) (entities.StepResult, error) {
	logger := application.ResolveLogger(n.Logger)
	run, err := n.Runs.GetRun(ctx, task.RunID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrRunNotFound) {
			return entities.SupersededStep(StageNotify), nil
		}
		return entities.StepResult{}, err
	}

	skip := ""
	switch {
	case run.NotifiedAt != nil:
		skip = "already_notified"
	case run.Input.Email == "":
		skip = "no_email"
	case run.Status != entities.RunStatusCompleted:
		skip = "not_completed"
	case run.OutputRef == "":
		skip = "no_output"
	}
	if skip != "" {
		logger.Debug("notification skipped",
			"event", "pipeline_notification_skipped",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"run_id", run.RunID,
			"reason", skip,
		)
		return entities.SupersededStep(StageNotify), nil
	}

	if err := n.Sender.SendVideoReady(ctx, ports.VideoReadyNotification{
		RunID:    run.RunID,
		Email:    run.Input.Email,
		Title:    run.Input.Title,
		VideoRef: run.OutputRef,
	}); err != nil {
		return entities.StepResult{}, err
	}

	if _, err := n.Runs.UpdateRun(ctx, run.RunID, func(current *entities.PipelineRun) error {
		current.RecordNotification(application.Now(n.Clock))
		return nil
	}); err != nil {
		logger.Warn("notification sent but not recorded",
			"event", "pipeline_notification_record_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"run_id", run.RunID,
			"error", err.Error(),
		)
	}
	logger.Info("notification sent",
		"event", "pipeline_notification_sent",
		"module", "media-generation/video-pipeline-service",
		"layer", "worker",
		"run_id", run.RunID,
	)
	return entities.StepResult{Status: entities.StepStatusSuccess, Stage: StageNotify, VideoRef: run.OutputRef}, nil
}

// Complete keeps a note of a notification that could not be delivered.
func (n Notifier) Complete(ctx context.Context, task ports.Task, result entities.StepResult) error {
	if result.Succeeded() {
		return nil
	}
	logger := application.ResolveLogger(n.Logger)
	if _, err := n.Runs.UpdateRun(ctx, task.RunID, func(run *entities.PipelineRun) error {
		run.RecordNotificationFailure(result.Error, application.Now(n.Clock))
		return nil
	}); err != nil {
		logger.Warn("notification failure not recorded",
			"event", "pipeline_notification_note_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"run_id", task.RunID,
			"error", err.Error(),
		)
	}
	return nil
}
