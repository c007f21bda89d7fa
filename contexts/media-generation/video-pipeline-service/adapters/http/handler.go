package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/application/commands"
	"turntable/contexts/media-generation/video-pipeline-service/application/queries"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	httptransport "turntable/contexts/media-generation/video-pipeline-service/transport/http"
)

type Handler struct {
	StartPipeline commands.StartPipelineUseCase
	GetRunStatus  queries.GetRunStatusUseCase
	ListPrompts   queries.ListPromptsUseCase
	Logger        *slog.Logger
}

// StartPipelineHandler godoc
// @Summary Start a product video pipeline run
// @Description Validates the request, persists a pending run and queues prompt generation. A run that fails during intake is still returned with status failed.
// @Tags video-pipeline
// @Accept json
// @Produce json
// @Param request body httptransport.StartPipelineRequest true "Product details and source image"
// @Success 202 {object} httptransport.StartPipelineResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/pipeline-runs [post]
func (h Handler) StartPipelineHandler(
	ctx context.Context,
	clientIP string,
	req httptransport.StartPipelineRequest,
) (httptransport.StartPipelineResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("start pipeline request received",
		"event", "http_start_pipeline_received",
		"module", "media-generation/video-pipeline-service",
		"layer", "transport",
		"client_ip", clientIP,
	)

	result, err := h.StartPipeline.Execute(ctx, commands.StartPipelineCommand{
		Title:           req.Title,
		Description:     req.Description,
		Email:           req.Email,
		ImageRef:        req.ImageURL,
		DurationSeconds: req.DurationSeconds,
		SkipImageEdit:   req.SkipImageEdit,
		Category:        req.Category,
		ForceNewPrompt:  req.ForceNewPrompt,
		ClientIP:        clientIP,
	})
	if err != nil {
		logger.Error("start pipeline request failed",
			"event", "http_start_pipeline_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "transport",
			"run_id", result.RunID,
			"error", err.Error(),
		)
		return httptransport.StartPipelineResponse{}, err
	}
	return httptransport.StartPipelineResponse{
		Status: string(result.Status),
		RunID:  result.RunID,
	}, nil
}

// GetPipelineRunHandler godoc
// @Summary Get pipeline run status
// @Description Returns the current snapshot of one run, including the output URL once completed.
// @Tags video-pipeline
// @Produce json
// @Param run_id path string true "Run id"
// @Success 200 {object} httptransport.GetPipelineRunResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/pipeline-runs/{run_id} [get]
func (h Handler) GetPipelineRunHandler(ctx context.Context, runID string) (httptransport.GetPipelineRunResponse, error) {
	result, err := h.GetRunStatus.Execute(ctx, queries.GetRunStatusQuery{RunID: runID})
	if err != nil {
		return httptransport.GetPipelineRunResponse{}, err
	}
	return httptransport.GetPipelineRunResponse{Run: mapRun(result.Run)}, nil
}

// ListPromptsHandler godoc
// @Summary List prompts generated for a requester
// @Tags video-pipeline
// @Produce json
// @Param email query string true "Requester email"
// @Param limit query int false "Max items (1-10)"
// @Success 200 {object} httptransport.ListPromptsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/prompts [get]
func (h Handler) ListPromptsHandler(ctx context.Context, req httptransport.ListPromptsRequest) (httptransport.ListPromptsResponse, error) {
	result, err := h.ListPrompts.Execute(ctx, queries.ListPromptsQuery{
		Email: strings.TrimSpace(req.Email),
		Limit: req.Limit,
	})
	if err != nil {
		return httptransport.ListPromptsResponse{}, err
	}
	items := make([]httptransport.PromptDTO, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, httptransport.PromptDTO{
			PromptID:   item.PromptID,
			Title:      item.Title,
			PromptText: item.PromptText,
			ModelID:    item.ModelID,
			Category:   item.Category,
			Approved:   item.Approved,
			RunID:      item.RunID,
			CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return httptransport.ListPromptsResponse{Items: items}, nil
}

func mapRun(run entities.PipelineRun) httptransport.PipelineRunDTO {
	dto := httptransport.PipelineRunDTO{
		RunID:            run.RunID,
		Status:           string(run.Status),
		Title:            run.Input.Title,
		Email:            run.Input.Email,
		ImageURL:         run.Input.ImageRef,
		DurationSeconds:  run.Input.DurationSeconds,
		SkipImageEdit:    run.Input.SkipImageEdit,
		Category:         run.Input.Category,
		PromptID:         run.PromptID,
		OutputURL:        run.OutputRef,
		ErrorMessage:     run.ErrorMessage,
		FailureKind:      string(run.FailureKind),
		NotificationNote: run.NotificationNote,
		CreatedAt:        run.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        run.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if run.NotifiedAt != nil {
		dto.NotifiedAt = run.NotifiedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
