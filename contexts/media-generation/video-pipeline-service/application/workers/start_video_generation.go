package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/application/retry"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

// StartVideoGeneration continues a run after the image edit and queues the
// video generation with the edited image.
type StartVideoGeneration struct {
	Runs      ports.RunRepository
	State     ports.StateStore
	Scheduler application.Scheduler
	// Rehoster is optional. When set, the edited image is copied off the
	// editor's short-lived URL first.
	Rehoster ports.AssetRehoster
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (c StartVideoGeneration) Execute(ctx context.Context, task ports.Task) (entities.StepResult, error) {
	logger := application.ResolveLogger(c.Logger)
	result, err := application.DecodePayload[entities.StepResult](task)
	if err != nil {
		return entities.FailedStep(StageStartVideoGeneration, entities.FailureKindValidation, err.Error()), nil
	}
	state, err := application.LoadState(ctx, c.State, task.RunID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrStateMissing) {
			return entities.FailedStep(StageStartVideoGeneration, entities.FailureKindStateMissing, err.Error()), nil
		}
		return entities.StepResult{}, err
	}
	if !result.Succeeded() {
		return entities.FailedStep(StageStartVideoGeneration, result.ErrorKind, result.Error), nil
	}

	imageRef := strings.TrimSpace(result.ImageRef)
	if !entities.IsHTTPURL(imageRef) {
		message := fmt.Sprintf("%s: edited image reference %q", domainerrors.ErrMalformedResponse.Error(), imageRef)
		return entities.FailedStep(StageStartVideoGeneration, entities.FailureKindCollaborator, message), nil
	}
	if c.Rehoster != nil {
		hosted, err := c.Rehoster.Rehost(ctx, imageRef)
		if err != nil {
			if retry.IsTransient(err) {
				return entities.StepResult{}, err
			}
			return entities.FailedStep(StageStartVideoGeneration, entities.FailureKindCollaborator, err.Error()), nil
		}
		imageRef = hosted
	}

	proceed, err := advanceRun(ctx, c.Runs, application.Now(c.Clock), task.RunID, entities.RunStatusProcessingVideo, result.PromptID)
	if err != nil {
		return entities.StepResult{}, err
	}
	if !proceed {
		return entities.SupersededStep(StageStartVideoGeneration), nil
	}
	if _, err := c.Scheduler.Schedule(ctx, application.TaskGenerateVideo, task.RunID, application.VideoPayload{
		ImageRef:        imageRef,
		PromptText:      result.PromptText,
		PromptID:        result.PromptID,
		DurationSeconds: state.Input.DurationSeconds,
	}, ""); err != nil {
		return entities.StepResult{}, err
	}

	logger.Info("video generation queued",
		"event", "pipeline_video_generation_queued",
		"module", "media-generation/video-pipeline-service",
		"layer", "worker",
		"run_id", task.RunID,
		"rehosted", c.Rehoster != nil,
	)
	return entities.StepResult{
		Status:   entities.StepStatusSuccess,
		Stage:    StageStartVideoGeneration,
		PromptID: result.PromptID,
		ImageRef: imageRef,
	}, nil
}
