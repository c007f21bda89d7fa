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

// RunFailer is the completion hook of both continuations: a failed result
// ends the run with the recorded kind and message.
type RunFailer struct {
	Runs   ports.RunRepository
	Clock  ports.Clock
	Logger *slog.Logger
}

func (f RunFailer) Complete(ctx context.Context, task ports.Task, result entities.StepResult) error {
	if result.Succeeded() {
		return nil
	}
	logger := application.ResolveLogger(f.Logger)
	err := markRunFailed(ctx, f.Runs, application.Now(f.Clock), task.RunID, result.ErrorKind, result.Error)
	if err != nil && !errors.Is(err, domainerrors.ErrRunFinalized) {
		return err
	}
	logger.Warn("pipeline run failed",
		"event", "pipeline_run_failed",
		"module", "media-generation/video-pipeline-service",
		"layer", "worker",
		"run_id", task.RunID,
		"stage", result.Stage,
		"failure_kind", result.ErrorKind,
		"retries_exhausted", result.RetriesExhausted,
	)
	return nil
}
