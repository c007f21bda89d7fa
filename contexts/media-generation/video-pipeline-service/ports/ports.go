package ports

import (
	"context"
	"time"

	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	"turntable/internal/shared/tasks"
)

// RunRepository owns PipelineRun persistence. UpdateRun applies mutate to the
// current row under a write lock and persists the result when mutate succeeds.
type RunRepository interface {
	CreateRun(ctx context.Context, run entities.PipelineRun) error
	GetRun(ctx context.Context, runID string) (entities.PipelineRun, error)
	UpdateRun(ctx context.Context, runID string, mutate func(*entities.PipelineRun) error) (entities.PipelineRun, error)
}

// PromptRepository stores generated prompts for reuse across runs.
type PromptRepository interface {
	// FindCanonical returns the newest approved record whose title matches
	// case-insensitively.
	FindCanonical(ctx context.Context, title string) (entities.PromptRecord, bool, error)
	CreatePrompt(ctx context.Context, record entities.PromptRecord) error
	ListPromptsByEmail(ctx context.Context, email string, limit int) ([]entities.PromptRecord, error)
}

// StateStore is the shared key/value store continuations reload run state from.
type StateStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// ExpiredStatePurger is implemented by state stores that keep expired rows
// until swept.
type ExpiredStatePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Task reuses the queue envelope shared with platform queue implementations.
type Task = tasks.Envelope

type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
}

// TaskSource models worker-side claiming and acknowledgement. Claimed tasks
// that are not acked before their lease runs out are delivered again.
type TaskSource interface {
	ClaimDue(ctx context.Context, workerID string, now time.Time, limit int) ([]Task, error)
	Ack(ctx context.Context, taskID string, now time.Time) error
}

type GeneratedPrompt struct {
	Text    string
	ModelID string
}

type PromptGenerator interface {
	GeneratePrompt(ctx context.Context, title string, description string) (GeneratedPrompt, error)
}

type ImageEditor interface {
	EditImage(ctx context.Context, imageRef string, prompt string) (string, error)
}

type VideoJobState string

const (
	VideoJobQueued     VideoJobState = "queued"
	VideoJobInProgress VideoJobState = "in_progress"
	VideoJobCompleted  VideoJobState = "completed"
	VideoJobFailed     VideoJobState = "failed"
	VideoJobCancelled  VideoJobState = "cancelled"
	VideoJobError      VideoJobState = "error"
	VideoJobUnknown    VideoJobState = "unknown"
)

type VideoJobStatus struct {
	State       VideoJobState
	ResultRef   string
	ErrorDetail string
}

// VideoGenerator models the collaborator's own asynchronous job API.
type VideoGenerator interface {
	SubmitVideoJob(ctx context.Context, imageRef string, prompt string, durationSeconds int) (string, error)
	PollVideoJob(ctx context.Context, jobID string) (VideoJobStatus, error)
}

// AssetRehoster copies a collaborator-hosted asset somewhere that outlives the
// collaborator's temporary URL.
type AssetRehoster interface {
	Rehost(ctx context.Context, ref string) (string, error)
}

type VideoReadyNotification struct {
	RunID    string
	Email    string
	Title    string
	VideoRef string
}

type NotificationSender interface {
	SendVideoReady(ctx context.Context, notification VideoReadyNotification) error
}

// Clock allows deterministic testing of TTL and backoff rules.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts run, prompt and task identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
