package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/domain/services"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

type StartPipelineCommand struct {
	Title           string
	Description     string
	Email           string
	ImageRef        string
	DurationSeconds int
	SkipImageEdit   bool
	Category        string
	ForceNewPrompt  bool
	ClientIP        string
}

type StartPipelineResult struct {
	RunID  string
	Status entities.RunStatus
}

type StartPipelineUseCase struct {
	Runs        ports.RunRepository
	State       ports.StateStore
	Scheduler   application.Scheduler
	IDGenerator ports.IDGenerator
	Clock       ports.Clock
	StateTTL    time.Duration
	Logger      *slog.Logger
}

// Execute runs intake in this order:
// 1) input validation, before anything is persisted
// 2) run creation
// 3) state write for the continuations
// 4) prompt task submission with the image edit continuation.
// A failure after step 2 marks the run failed and still returns its id.
func (u StartPipelineUseCase) Execute(ctx context.Context, cmd StartPipelineCommand) (StartPipelineResult, error) {
	logger := application.ResolveLogger(u.Logger)
	input, err := entities.RunInput{
		Title:           cmd.Title,
		Description:     cmd.Description,
		Email:           cmd.Email,
		ImageRef:        cmd.ImageRef,
		DurationSeconds: cmd.DurationSeconds,
		SkipImageEdit:   cmd.SkipImageEdit,
		Category:        cmd.Category,
		ForceNewPrompt:  cmd.ForceNewPrompt,
		ClientIP:        cmd.ClientIP,
	}.Normalize()
	if err != nil {
		logger.Warn("pipeline input rejected",
			"event", "pipeline_input_rejected",
			"module", "media-generation/video-pipeline-service",
			"layer", "application",
			"client_ip", cmd.ClientIP,
			"error", err.Error(),
		)
		return StartPipelineResult{}, err
	}

	runID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return StartPipelineResult{}, err
	}
	now := application.Now(u.Clock)
	run, err := entities.NewPipelineRun(runID, input, now)
	if err != nil {
		return StartPipelineResult{}, err
	}
	if err := u.Runs.CreateRun(ctx, run); err != nil {
		logger.Error("pipeline run create failed",
			"event", "pipeline_run_create_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "application",
			"run_id", runID,
			"error", err.Error(),
		)
		return StartPipelineResult{}, fmt.Errorf("%w: create run: %w", domainerrors.ErrPersistence, err)
	}

	if input.SkipImageEdit && !services.AcceptsAsVideoSource(input.ImageRef) {
		message := fmt.Sprintf("%s: %s", domainerrors.ErrUnsupportedSourceFormat.Error(), input.ImageRef)
		u.fail(ctx, logger, runID, entities.FailureKindValidation, message)
		return StartPipelineResult{RunID: runID, Status: entities.RunStatusFailed}, nil
	}

	if err := application.SaveState(ctx, u.State, entities.PipelineState{
		RunID:     runID,
		Input:     input,
		CreatedAt: now,
	}, u.StateTTL); err != nil {
		u.fail(ctx, logger, runID, entities.FailureKindStateStore, err.Error())
		return StartPipelineResult{RunID: runID, Status: entities.RunStatusFailed}, err
	}

	if _, err := u.Scheduler.Schedule(ctx, application.TaskGeneratePrompt, runID, application.PromptPayload{
		Title:       input.Title,
		Description: input.Description,
		Email:       input.Email,
		Category:    input.Category,
		ForceNew:    input.ForceNewPrompt,
	}, application.TaskStartImageEdit); err != nil {
		u.fail(ctx, logger, runID, entities.FailureKindQueue, err.Error())
		return StartPipelineResult{RunID: runID, Status: entities.RunStatusFailed}, err
	}

	logger.Info("pipeline run accepted",
		"event", "pipeline_run_accepted",
		"module", "media-generation/video-pipeline-service",
		"layer", "application",
		"run_id", runID,
		"skip_image_edit", input.SkipImageEdit,
		"duration_seconds", input.DurationSeconds,
		"client_ip", input.ClientIP,
	)
	return StartPipelineResult{RunID: runID, Status: entities.RunStatusPending}, nil
}

func (u StartPipelineUseCase) fail(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	kind entities.FailureKind,
	message string,
) {
	_, err := u.Runs.UpdateRun(ctx, runID, func(run *entities.PipelineRun) error {
		_, err := run.MarkFailed(kind, message, application.Now(u.Clock))
		return err
	})
	if err != nil {
		logger.Error("pipeline run fail transition not persisted",
			"event", "pipeline_run_fail_persist_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "application",
			"run_id", runID,
			"failure_kind", kind,
			"error", err.Error(),
		)
		return
	}
	logger.Warn("pipeline run failed at intake",
		"event", "pipeline_run_failed",
		"module", "media-generation/video-pipeline-service",
		"layer", "application",
		"run_id", runID,
		"failure_kind", kind,
	)
}
