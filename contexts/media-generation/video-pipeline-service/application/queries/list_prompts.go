package queries

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

const MaxPromptListLimit = 10

type ListPromptsQuery struct {
	Email string
	Limit int
}

type ListPromptsResult struct {
	Items []entities.PromptRecord
}

// ListPromptsUseCase returns a requester's prompts, newest first.
type ListPromptsUseCase struct {
	Prompts ports.PromptRepository
	Logger  *slog.Logger
}

func (u ListPromptsUseCase) Execute(ctx context.Context, query ListPromptsQuery) (ListPromptsResult, error) {
	logger := application.ResolveLogger(u.Logger)
	email := strings.TrimSpace(query.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return ListPromptsResult{}, domainerrors.ErrInvalidInput
	}
	limit := query.Limit
	if limit <= 0 || limit > MaxPromptListLimit {
		limit = MaxPromptListLimit
	}

	items, err := u.Prompts.ListPromptsByEmail(ctx, email, limit)
	if err != nil {
		logger.Error("list prompts failed",
			"event", "pipeline_prompts_list_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "application",
			"error", err.Error(),
		)
		return ListPromptsResult{}, err
	}
	return ListPromptsResult{Items: items}, nil
}
