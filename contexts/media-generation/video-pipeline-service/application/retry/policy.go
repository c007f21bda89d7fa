// Package retry classifies stage errors and tells the queue runtime what to
// do next. It never sleeps or reschedules anything itself.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/domain/services"
)

type Action string

const (
	// ActionComplete hands Result to the completion hook and continuation.
	ActionComplete Action = "complete"
	// ActionRetry asks the runtime to run the same task again after Delay.
	ActionRetry Action = "retry"
	// ActionPassThrough leaves the task untouched for redelivery.
	ActionPassThrough Action = "pass_through"
)

type Outcome struct {
	Action Action
	Delay  time.Duration
	Result entities.StepResult
	Err    error
}

// Call describes the execution being wrapped, for logging and backoff.
type Call struct {
	Stage   string
	RunID   string
	TaskID  string
	Attempt int
	Input   []byte
}

type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool
	// Transient overrides the default ErrTransient classification.
	Transient func(error) bool
	Logger    *slog.Logger
}

const (
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 5 * time.Minute
)

func DefaultPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries: maxRetries,
		BaseDelay:  defaultBaseDelay,
		MaxDelay:   defaultMaxDelay,
	}
}

func IsTransient(err error) bool {
	return errors.Is(err, domainerrors.ErrTransient)
}

// AlwaysTransient treats every error as retryable. Continuations use it since
// their only failure modes are store and queue outages.
func AlwaysTransient(error) bool {
	return true
}

// PassesThrough reports cancellation, which the runtime handles by leaving
// the task for redelivery. Retries are never signalled by error: the runtime
// schedules them from Outcome.
func PassesThrough(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || ctx.Err() != nil
}

// Backoff returns BaseDelay * 2^attempt, capped by MaxDelay. With Jitter the
// delay is drawn from [d/2, d].
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	ceiling := p.MaxDelay
	if ceiling <= 0 {
		ceiling = defaultMaxDelay
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := base
	for i := 0; i < attempt; i++ {
		if delay >= ceiling/2 {
			delay = ceiling
			break
		}
		delay *= 2
	}
	if delay > ceiling {
		delay = ceiling
	}
	if p.Jitter && delay > 1 {
		half := delay / 2
		delay = half + rand.N(half+1)
	}
	return delay
}

// Run executes fn once and classifies the result. A nil error always
// completes; everything else becomes a retry, a pass-through, or a failed
// StepResult.
func (p Policy) Run(ctx context.Context, call Call, fn func(context.Context) (entities.StepResult, error)) Outcome {
	logger := application.ResolveLogger(p.Logger)

	result, err := fn(ctx)
	if err == nil {
		if result.Stage == "" {
			result.Stage = call.Stage
		}
		if result.Status == "" {
			result.Status = entities.StepStatusSuccess
		}
		return Outcome{Action: ActionComplete, Result: result}
	}

	if PassesThrough(ctx, err) {
		logger.Debug("stage interrupted",
			"event", "pipeline_stage_interrupted",
			"module", "media-generation/video-pipeline-service",
			"layer", "application",
			"stage", call.Stage,
			"run_id", call.RunID,
			"task_id", call.TaskID,
			"attempt", call.Attempt,
			"error", RedactString(err.Error()),
		)
		return Outcome{Action: ActionPassThrough, Err: err}
	}

	transient := p.isTransient(err)
	if transient && call.Attempt < p.MaxRetries {
		delay := p.Backoff(call.Attempt)
		logger.Warn("stage failed with transient error, retry scheduled",
			"event", "pipeline_stage_retry_scheduled",
			"module", "media-generation/video-pipeline-service",
			"layer", "application",
			"stage", call.Stage,
			"run_id", call.RunID,
			"task_id", call.TaskID,
			"attempt", call.Attempt,
			"max_retries", p.MaxRetries,
			"delay", delay.String(),
			"error", RedactString(err.Error()),
		)
		return Outcome{Action: ActionRetry, Delay: delay, Err: err}
	}

	failed := entities.FailedStep(call.Stage, services.ClassifyFailure(err), RedactString(err.Error()))
	failed.RetriesExhausted = transient
	logger.Error("stage failed",
		"event", "pipeline_stage_failed",
		"module", "media-generation/video-pipeline-service",
		"layer", "application",
		"stage", call.Stage,
		"run_id", call.RunID,
		"task_id", call.TaskID,
		"attempt", call.Attempt,
		"retries_exhausted", transient,
		"failure_kind", failed.ErrorKind,
		"input", Redact(call.Input),
		"error", RedactString(err.Error()),
	)
	return Outcome{Action: ActionComplete, Result: failed, Err: err}
}

func (p Policy) isTransient(err error) bool {
	if p.Transient != nil {
		return p.Transient(err)
	}
	return IsTransient(err)
}
