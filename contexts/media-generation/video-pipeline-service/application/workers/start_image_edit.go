package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/domain/services"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

// StartImageEdit continues a run once its prompt is ready. It either queues
// the image edit or, when the caller asked to skip it, the video generation.
type StartImageEdit struct {
	Runs      ports.RunRepository
	State     ports.StateStore
	Scheduler application.Scheduler
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (c StartImageEdit) Execute(ctx context.Context, task ports.Task) (entities.StepResult, error) {
	logger := application.ResolveLogger(c.Logger)
	result, err := application.DecodePayload[entities.StepResult](task)
	if err != nil {
		return entities.FailedStep(StageStartImageEdit, entities.FailureKindValidation, err.Error()), nil
	}
	state, err := application.LoadState(ctx, c.State, task.RunID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrStateMissing) {
			return entities.FailedStep(StageStartImageEdit, entities.FailureKindStateMissing, err.Error()), nil
		}
		return entities.StepResult{}, err
	}
	if !result.Succeeded() {
		return entities.FailedStep(StageStartImageEdit, result.ErrorKind, result.Error), nil
	}

	input := state.Input
	now := application.Now(c.Clock)
	if input.SkipImageEdit {
		if !services.AcceptsAsVideoSource(input.ImageRef) {
			message := fmt.Sprintf("%s: %s", domainerrors.ErrUnsupportedSourceFormat.Error(), input.ImageRef)
			return entities.FailedStep(StageStartImageEdit, entities.FailureKindValidation, message), nil
		}
		proceed, err := advanceRun(ctx, c.Runs, now, task.RunID, entities.RunStatusProcessingVideo, result.PromptID)
		if err != nil {
			return entities.StepResult{}, err
		}
		if !proceed {
			return entities.SupersededStep(StageStartImageEdit), nil
		}
		if _, err := c.Scheduler.Schedule(ctx, application.TaskGenerateVideo, task.RunID, application.VideoPayload{
			ImageRef:        input.ImageRef,
			PromptText:      result.PromptText,
			PromptID:        result.PromptID,
			DurationSeconds: input.DurationSeconds,
		}, ""); err != nil {
			return entities.StepResult{}, err
		}
		logger.Info("image edit skipped, video generation queued",
			"event", "pipeline_image_edit_skipped",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"run_id", task.RunID,
		)
		return entities.StepResult{Status: entities.StepStatusSuccess, Stage: StageStartImageEdit, PromptID: result.PromptID}, nil
	}

	proceed, err := advanceRun(ctx, c.Runs, now, task.RunID, entities.RunStatusProcessing, result.PromptID)
	if err != nil {
		return entities.StepResult{}, err
	}
	if !proceed {
		return entities.SupersededStep(StageStartImageEdit), nil
	}
	if _, err := c.Scheduler.Schedule(ctx, application.TaskEditImage, task.RunID, application.ImageEditPayload{
		ImageRef:   input.ImageRef,
		PromptText: result.PromptText,
		PromptID:   result.PromptID,
	}, application.TaskStartVideoGeneration); err != nil {
		return entities.StepResult{}, err
	}
	logger.Info("image edit queued",
		"event", "pipeline_image_edit_queued",
		"module", "media-generation/video-pipeline-service",
		"layer", "worker",
		"run_id", task.RunID,
		"prompt_reused", result.Reused,
	)
	return entities.StepResult{Status: entities.StepStatusSuccess, Stage: StageStartImageEdit, PromptID: result.PromptID}, nil
}
