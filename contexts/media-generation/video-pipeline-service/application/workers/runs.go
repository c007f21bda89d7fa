package workers

import (
	"context"
	"errors"
	"time"

	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

const (
	StagePrompt               = "prompt"
	StageStartImageEdit       = "start_image_edit"
	StageImageEdit            = "image_edit"
	StageStartVideoGeneration = "start_video_generation"
	StageVideoGeneration      = "video_generation"
	StageNotify               = "notify"
)

// advanceRun attaches promptID and moves the run to next. Re-entering the
// current status proceeds so a redelivered task can finish scheduling. It
// reports false when the run is past next or finalized.
func advanceRun(
	ctx context.Context,
	runs ports.RunRepository,
	now time.Time,
	runID string,
	next entities.RunStatus,
	promptID string,
) (bool, error) {
	_, err := runs.UpdateRun(ctx, runID, func(run *entities.PipelineRun) error {
		if promptID != "" {
			run.AttachPrompt(promptID, now)
		}
		_, err := run.Advance(next, now)
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domainerrors.ErrStaleTransition), errors.Is(err, domainerrors.ErrRunFinalized):
		return false, nil
	default:
		return false, err
	}
}

func markRunFailed(
	ctx context.Context,
	runs ports.RunRepository,
	now time.Time,
	runID string,
	kind entities.FailureKind,
	message string,
) error {
	_, err := runs.UpdateRun(ctx, runID, func(run *entities.PipelineRun) error {
		_, err := run.MarkFailed(kind, message, now)
		return err
	})
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
