package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

type ImageEditStage struct {
	Runs   ports.RunRepository
	Editor ports.ImageEditor
	Clock  ports.Clock
	Logger *slog.Logger
}

func (s ImageEditStage) Execute(ctx context.Context, task ports.Task) (entities.StepResult, error) {
	logger := application.ResolveLogger(s.Logger)
	payload, err := application.DecodePayload[application.ImageEditPayload](task)
	if err != nil {
		return entities.StepResult{}, err
	}

	proceed, err := advanceRun(ctx, s.Runs, application.Now(s.Clock), task.RunID, entities.RunStatusProcessingImage, "")
	if err != nil {
		return entities.StepResult{}, fmt.Errorf("%w: %w: %w", domainerrors.ErrTransient, domainerrors.ErrPersistence, err)
	}
	if !proceed {
		return entities.SupersededStep(StageImageEdit), nil
	}

	edited, err := s.Editor.EditImage(ctx, payload.ImageRef, payload.PromptText)
	if err != nil {
		return entities.StepResult{}, err
	}
	edited = strings.TrimSpace(edited)
	if !entities.IsHTTPURL(edited) {
		return entities.StepResult{}, fmt.Errorf("%w: edited image reference %q", domainerrors.ErrMalformedResponse, edited)
	}

	logger.Info("image edited",
		"event", "pipeline_image_edited",
		"module", "media-generation/video-pipeline-service",
		"layer", "worker",
		"run_id", task.RunID,
		"attempt", task.Attempt,
	)
	return entities.StepResult{
		Status:     entities.StepStatusSuccess,
		Stage:      StageImageEdit,
		PromptText: payload.PromptText,
		PromptID:   payload.PromptID,
		ImageRef:   edited,
	}, nil
}
