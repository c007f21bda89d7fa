package queries

import (
	"context"
	"log/slog"
	"strings"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

type GetRunStatusQuery struct {
	RunID string
}

type GetRunStatusResult struct {
	Run entities.PipelineRun
}

type GetRunStatusUseCase struct {
	Runs   ports.RunRepository
	Logger *slog.Logger
}

func (u GetRunStatusUseCase) Execute(ctx context.Context, query GetRunStatusQuery) (GetRunStatusResult, error) {
	logger := application.ResolveLogger(u.Logger)
	runID := strings.TrimSpace(query.RunID)
	if runID == "" {
		return GetRunStatusResult{}, domainerrors.ErrInvalidInput
	}

	run, err := u.Runs.GetRun(ctx, runID)
	if err != nil {
		logger.Error("get pipeline run failed",
			"event", "pipeline_run_get_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "application",
			"run_id", runID,
			"error", err.Error(),
		)
		return GetRunStatusResult{}, err
	}
	return GetRunStatusResult{Run: run}, nil
}
