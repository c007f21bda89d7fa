package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

const (
	DefaultVideoPollInterval = 12 * time.Second
	DefaultVideoMaxPolls     = 45
)

// VideoGenStage submits the video job and polls it to a terminal state. A
// job id already recorded on the run is resumed instead of resubmitted.
type VideoGenStage struct {
	Runs         ports.RunRepository
	Generator    ports.VideoGenerator
	Scheduler    application.Scheduler
	Clock        ports.Clock
	PollInterval time.Duration
	MaxPolls     int
	// Sleep waits between polls; tests replace it.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

func (s VideoGenStage) Execute(ctx context.Context, task ports.Task) (entities.StepResult, error) {
	logger := application.ResolveLogger(s.Logger)
	payload, err := application.DecodePayload[application.VideoPayload](task)
	if err != nil {
		return entities.StepResult{}, err
	}

	run, err := s.Runs.GetRun(ctx, task.RunID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrRunNotFound) {
			return entities.SupersededStep(StageVideoGeneration), nil
		}
		return entities.StepResult{}, fmt.Errorf("%w: %w: %w", domainerrors.ErrTransient, domainerrors.ErrPersistence, err)
	}
	switch run.Status {
	case entities.RunStatusCompleted:
		return entities.StepResult{
			Status:   entities.StepStatusSuccess,
			Stage:    StageVideoGeneration,
			PromptID: run.PromptID,
			VideoRef: run.OutputRef,
		}, nil
	case entities.RunStatusFailed:
		return entities.SupersededStep(StageVideoGeneration), nil
	}

	jobID := run.VideoJobID
	if jobID == "" {
		jobID, err = s.Generator.SubmitVideoJob(ctx, payload.ImageRef, payload.PromptText, payload.DurationSeconds)
		if err != nil {
			return entities.StepResult{}, err
		}
		if _, err := s.Runs.UpdateRun(ctx, task.RunID, func(current *entities.PipelineRun) error {
			current.RecordVideoJob(jobID, application.Now(s.Clock))
			return nil
		}); err != nil {
			logger.Warn("video job id not recorded",
				"event", "pipeline_video_job_record_failed",
				"module", "media-generation/video-pipeline-service",
				"layer", "worker",
				"run_id", task.RunID,
				"job_id", jobID,
				"error", err.Error(),
			)
		}
		logger.Info("video job submitted",
			"event", "pipeline_video_job_submitted",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"run_id", task.RunID,
			"job_id", jobID,
		)
	} else {
		logger.Info("resuming video job",
			"event", "pipeline_video_job_resumed",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"run_id", task.RunID,
			"job_id", jobID,
		)
	}

	videoRef, err := s.poll(ctx, logger, task.RunID, jobID)
	if err != nil {
		return entities.StepResult{}, err
	}
	return entities.StepResult{
		Status:   entities.StepStatusSuccess,
		Stage:    StageVideoGeneration,
		PromptID: payload.PromptID,
		ImageRef: payload.ImageRef,
		VideoRef: videoRef,
	}, nil
}

func (s VideoGenStage) poll(ctx context.Context, logger *slog.Logger, runID string, jobID string) (string, error) {
	maxPolls := s.MaxPolls
	if maxPolls <= 0 {
		maxPolls = DefaultVideoMaxPolls
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultVideoPollInterval
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for poll := 1; poll <= maxPolls; poll++ {
		status, err := s.Generator.PollVideoJob(ctx, jobID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Warn("video job poll failed",
				"event", "pipeline_video_poll_failed",
				"module", "media-generation/video-pipeline-service",
				"layer", "worker",
				"run_id", runID,
				"job_id", jobID,
				"poll", poll,
				"error", err.Error(),
			)
		case status.State == ports.VideoJobCompleted:
			ref := strings.TrimSpace(status.ResultRef)
			if ref == "" {
				return "", fmt.Errorf("%w: video job %s completed without a result", domainerrors.ErrMalformedResponse, jobID)
			}
			return ref, nil
		case status.State == ports.VideoJobFailed,
			status.State == ports.VideoJobCancelled,
			status.State == ports.VideoJobError:
			detail := strings.TrimSpace(status.ErrorDetail)
			if detail == "" {
				detail = "no detail reported"
			}
			return "", fmt.Errorf("%w: video job %s %s: %s", domainerrors.ErrCollaboratorFailed, jobID, status.State, detail)
		}

		if poll < maxPolls {
			if err := sleep(ctx, interval); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%w: job %s unfinished after %d polls", domainerrors.ErrVideoTimeout, jobID, maxPolls)
}

// Complete records the terminal outcome on the run and queues the
// notification. Errors leave the task for redelivery, which resumes the
// recorded job.
func (s VideoGenStage) Complete(ctx context.Context, task ports.Task, result entities.StepResult) error {
	logger := application.ResolveLogger(s.Logger)
	now := application.Now(s.Clock)

	if !result.Succeeded() {
		err := markRunFailed(ctx, s.Runs, now, task.RunID, result.ErrorKind, result.Error)
		if err != nil && !errors.Is(err, domainerrors.ErrRunFinalized) {
			return err
		}
		logger.Warn("pipeline run failed",
			"event", "pipeline_run_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"run_id", task.RunID,
			"failure_kind", result.ErrorKind,
		)
		return nil
	}

	_, err := s.Runs.UpdateRun(ctx, task.RunID, func(run *entities.PipelineRun) error {
		_, err := run.MarkCompleted(result.VideoRef, now)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, domainerrors.ErrRunFinalized), errors.Is(err, domainerrors.ErrInvalidTransition):
		logger.Warn("completion ignored for finalized run",
			"event", "pipeline_run_completion_ignored",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"run_id", task.RunID,
			"error", err.Error(),
		)
		return nil
	default:
		logger.Error("pipeline run completion not persisted",
			"event", "pipeline_run_completion_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"run_id", task.RunID,
			"error", err.Error(),
		)
		return err
	}

	logger.Info("pipeline run completed",
		"event", "pipeline_run_completed",
		"module", "media-generation/video-pipeline-service",
		"layer", "worker",
		"run_id", task.RunID,
	)
	if _, err := s.Scheduler.Schedule(ctx, application.TaskNotify, task.RunID, application.NotifyPayload{}, ""); err != nil {
		logger.Warn("notification not queued",
			"event", "pipeline_notification_enqueue_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"run_id", task.RunID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}
