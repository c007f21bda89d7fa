// Package faladapter talks to the Fal queue API for image-to-video jobs.
package faladapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

const (
	DefaultBaseURL        = "https://queue.fal.run/"
	DefaultSubmitEndpoint = "fal-ai/kling-video/v1.6/standard/image-to-video"
	DefaultRequestsPath   = "fal-ai/kling-video/requests/"

	defaultNegativePrompt = "blur, distort, and low quality"
	defaultAspectRatio    = "1:1"
	defaultCFGScale       = 0.5
	maxResponseBytes      = 1 << 20
)

type Config struct {
	APIKey         string
	BaseURL        string
	SubmitEndpoint string
	RequestsPath   string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

type VideoGenerator struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewVideoGenerator(cfg Config, logger *slog.Logger) *VideoGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.SubmitEndpoint == "" {
		cfg.SubmitEndpoint = DefaultSubmitEndpoint
	}
	if cfg.RequestsPath == "" {
		cfg.RequestsPath = DefaultRequestsPath
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &VideoGenerator{cfg: cfg, client: client, logger: logger}
}

type submitRequest struct {
	ImageURL       string  `json:"image_url"`
	Prompt         string  `json:"prompt"`
	Duration       string  `json:"duration"`
	AspectRatio    string  `json:"aspect_ratio"`
	NegativePrompt string  `json:"negative_prompt"`
	CFGScale       float64 `json:"cfg_scale"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type resultResponse struct {
	Video *struct {
		URL string `json:"url"`
	} `json:"video"`
	Videos []struct {
		URL string `json:"url"`
	} `json:"videos"`
}

func (g *VideoGenerator) SubmitVideoJob(ctx context.Context, imageRef string, prompt string, durationSeconds int) (string, error) {
	var resp submitResponse
	if err := g.do(ctx, http.MethodPost, g.cfg.SubmitEndpoint, submitRequest{
		ImageURL:       imageRef,
		Prompt:         prompt,
		Duration:       strconv.Itoa(durationSeconds),
		AspectRatio:    defaultAspectRatio,
		NegativePrompt: defaultNegativePrompt,
		CFGScale:       defaultCFGScale,
	}, &resp); err != nil {
		return "", err
	}
	requestID := strings.TrimSpace(resp.RequestID)
	if requestID == "" {
		return "", fmt.Errorf("%w: submit response has no request_id", domainerrors.ErrMalformedResponse)
	}
	g.logger.Info("video job submitted",
		"event", "fal_video_job_submitted",
		"module", "media-generation/video-pipeline-service",
		"layer", "adapter",
		"job_id", requestID,
		"duration_seconds", durationSeconds,
	)
	return requestID, nil
}

// PollVideoJob reads the job status and, once it completes, the result.
func (g *VideoGenerator) PollVideoJob(ctx context.Context, jobID string) (ports.VideoJobStatus, error) {
	var status statusResponse
	if err := g.do(ctx, http.MethodGet, g.cfg.RequestsPath+jobID+"/status", nil, &status); err != nil {
		return ports.VideoJobStatus{}, err
	}

	state := mapStatus(status.Status)
	switch state {
	case ports.VideoJobCompleted:
		var result resultResponse
		if err := g.do(ctx, http.MethodGet, g.cfg.RequestsPath+jobID, nil, &result); err != nil {
			return ports.VideoJobStatus{}, err
		}
		return ports.VideoJobStatus{State: state, ResultRef: result.videoURL()}, nil
	case ports.VideoJobFailed, ports.VideoJobCancelled, ports.VideoJobError:
		detail := strings.TrimSpace(status.Message)
		if detail == "" {
			detail = strings.TrimSpace(status.Error)
		}
		return ports.VideoJobStatus{State: state, ErrorDetail: detail}, nil
	default:
		return ports.VideoJobStatus{State: state}, nil
	}
}

func mapStatus(raw string) ports.VideoJobState {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "IN_QUEUE", "QUEUED":
		return ports.VideoJobQueued
	case "IN_PROGRESS":
		return ports.VideoJobInProgress
	case "COMPLETED":
		return ports.VideoJobCompleted
	case "FAILED":
		return ports.VideoJobFailed
	case "CANCELLED":
		return ports.VideoJobCancelled
	case "ERROR":
		return ports.VideoJobError
	default:
		return ports.VideoJobUnknown
	}
}

func (r resultResponse) videoURL() string {
	if r.Video != nil && strings.TrimSpace(r.Video.URL) != "" {
		return strings.TrimSpace(r.Video.URL)
	}
	if len(r.Videos) > 0 {
		return strings.TrimSpace(r.Videos[0].URL)
	}
	return ""
}

func (g *VideoGenerator) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode fal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build fal request: %w", domainerrors.ErrCollaboratorFailed, err)
	}
	req.Header.Set("Authorization", "Key "+g.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: fal %s %s: %w", domainerrors.ErrTransient, method, path, err)
		}
		return fmt.Errorf("%w: fal %s %s: %w", domainerrors.ErrCollaboratorFailed, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read fal response: %w", domainerrors.ErrTransient, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(payload))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("%w: fal %s %s: status %d: %s", domainerrors.ErrTransient, method, path, resp.StatusCode, snippet)
		}
		return fmt.Errorf("%w: fal %s %s: status %d: %s", domainerrors.ErrCollaboratorFailed, method, path, resp.StatusCode, snippet)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: decode fal response: %w", domainerrors.ErrMalformedResponse, err)
	}
	return nil
}
