package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/domain/services"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

// PromptStage reuses the canonical prompt for a title or generates and
// stores a new one.
type PromptStage struct {
	Prompts     ports.PromptRepository
	Generator   ports.PromptGenerator
	IDGenerator ports.IDGenerator
	Clock       ports.Clock
	// AutoApprove marks generated prompts canonical for later runs.
	AutoApprove bool
	Logger      *slog.Logger
}

func (s PromptStage) Execute(ctx context.Context, task ports.Task) (entities.StepResult, error) {
	logger := application.ResolveLogger(s.Logger)
	payload, err := application.DecodePayload[application.PromptPayload](task)
	if err != nil {
		return entities.StepResult{}, err
	}

	if !payload.ForceNew {
		existing, found, err := s.Prompts.FindCanonical(ctx, payload.Title)
		if err != nil {
			return entities.StepResult{}, fmt.Errorf("%w: find canonical prompt: %w", domainerrors.ErrTransient, err)
		}
		if found {
			logger.Info("canonical prompt reused",
				"event", "pipeline_prompt_reused",
				"module", "media-generation/video-pipeline-service",
				"layer", "worker",
				"run_id", task.RunID,
				"prompt_id", existing.PromptID,
			)
			return entities.StepResult{
				Status:     entities.StepStatusSuccess,
				Stage:      StagePrompt,
				PromptText: existing.PromptText,
				PromptID:   existing.PromptID,
				Reused:     true,
			}, nil
		}
	}

	generated, err := s.Generator.GeneratePrompt(ctx, payload.Title, payload.Description)
	if err != nil {
		return entities.StepResult{}, err
	}
	text := strings.TrimSpace(generated.Text)
	if text == "" {
		return entities.StepResult{}, fmt.Errorf("%w: empty prompt text", domainerrors.ErrMalformedResponse)
	}
	text = services.EnhanceForCategory(text, payload.Category)

	promptID, err := s.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.StepResult{}, fmt.Errorf("%w: %w", domainerrors.ErrTransient, err)
	}
	record, err := entities.NewPromptRecord(
		promptID,
		entities.RunInput{
			Title:       payload.Title,
			Description: payload.Description,
			Email:       payload.Email,
			Category:    payload.Category,
		},
		text,
		generated.ModelID,
		s.AutoApprove,
		task.RunID,
		task.TaskID,
		application.Now(s.Clock),
	)
	if err != nil {
		return entities.StepResult{}, err
	}
	if err := s.Prompts.CreatePrompt(ctx, record); err != nil {
		return entities.StepResult{}, fmt.Errorf("%w: %w: %w", domainerrors.ErrTransient, domainerrors.ErrPersistence, err)
	}

	logger.Info("prompt generated",
		"event", "pipeline_prompt_generated",
		"module", "media-generation/video-pipeline-service",
		"layer", "worker",
		"run_id", task.RunID,
		"prompt_id", record.PromptID,
		"model_id", record.ModelID,
		"category", record.Category,
	)
	return entities.StepResult{
		Status:     entities.StepStatusSuccess,
		Stage:      StagePrompt,
		PromptText: record.PromptText,
		PromptID:   record.PromptID,
	}, nil
}
