package entities

import (
	"strings"
	"time"
	"unicode/utf8"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
)

type RunStatus string

const (
	RunStatusPending         RunStatus = "pending"
	RunStatusProcessing      RunStatus = "processing"
	RunStatusProcessingImage RunStatus = "processing_image"
	RunStatusProcessingVideo RunStatus = "processing_video"
	RunStatusCompleted       RunStatus = "completed"
	RunStatusFailed          RunStatus = "failed"
)

// MaxErrorMessageLength bounds the user-visible failure message.
const MaxErrorMessageLength = 500

func (s RunStatus) rank() int {
	switch s {
	case RunStatusPending:
		return 0
	case RunStatusProcessing:
		return 1
	case RunStatusProcessingImage:
		return 2
	case RunStatusProcessingVideo:
		return 3
	case RunStatusCompleted:
		return 4
	default:
		return -1
	}
}

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

func (s RunStatus) Valid() bool {
	return s == RunStatusFailed || s.rank() >= 0
}

type PipelineRun struct {
	RunID            string
	Status           RunStatus
	Input            RunInput
	PromptID         string
	OutputRef        string
	ErrorMessage     string
	FailureKind      FailureKind
	VideoJobID       string
	NotificationNote string
	NotifiedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewPipelineRun(runID string, input RunInput, now time.Time) (PipelineRun, error) {
	if strings.TrimSpace(runID) == "" {
		return PipelineRun{}, domainerrors.ErrInvalidInput
	}
	normalized, err := input.Normalize()
	if err != nil {
		return PipelineRun{}, err
	}
	return PipelineRun{
		RunID:     runID,
		Status:    RunStatusPending,
		Input:     normalized,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Advance moves a non-terminal run forward. Re-applying the current status is
// a no-op so duplicate task deliveries stay harmless.
func (r *PipelineRun) Advance(next RunStatus, now time.Time) (bool, error) {
	if next.IsTerminal() || next.rank() < 0 {
		return false, domainerrors.ErrInvalidTransition
	}
	if r.Status.IsTerminal() {
		return false, domainerrors.ErrRunFinalized
	}
	switch {
	case next.rank() == r.Status.rank():
		return false, nil
	case next.rank() < r.Status.rank():
		return false, domainerrors.ErrStaleTransition
	}
	r.Status = next
	r.touch(now)
	return true, nil
}

func (r *PipelineRun) MarkCompleted(outputRef string, now time.Time) (bool, error) {
	outputRef = strings.TrimSpace(outputRef)
	if outputRef == "" {
		return false, domainerrors.ErrInvalidTransition
	}
	switch r.Status {
	case RunStatusCompleted:
		if r.OutputRef == outputRef {
			return false, nil
		}
		return false, domainerrors.ErrInvalidTransition
	case RunStatusFailed:
		return false, domainerrors.ErrRunFinalized
	}
	r.Status = RunStatusCompleted
	r.OutputRef = outputRef
	r.ErrorMessage = ""
	r.FailureKind = ""
	r.touch(now)
	return true, nil
}

// MarkFailed keeps the first recorded failure when applied twice.
func (r *PipelineRun) MarkFailed(kind FailureKind, message string, now time.Time) (bool, error) {
	switch r.Status {
	case RunStatusFailed:
		return false, nil
	case RunStatusCompleted:
		return false, domainerrors.ErrRunFinalized
	}
	if kind == "" {
		kind = FailureKindCollaborator
	}
	r.Status = RunStatusFailed
	r.FailureKind = kind
	r.ErrorMessage = TruncateErrorMessage(message)
	r.touch(now)
	return true, nil
}

// AttachPrompt records the prompt a run used. The first attached prompt wins.
func (r *PipelineRun) AttachPrompt(promptID string, now time.Time) {
	promptID = strings.TrimSpace(promptID)
	if promptID == "" || r.PromptID != "" {
		return
	}
	r.PromptID = promptID
	r.touch(now)
}

func (r *PipelineRun) RecordVideoJob(jobID string, now time.Time) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" || r.VideoJobID == jobID {
		return
	}
	r.VideoJobID = jobID
	r.touch(now)
}

func (r *PipelineRun) RecordNotification(now time.Time) {
	if r.NotifiedAt != nil {
		return
	}
	at := now.UTC()
	r.NotifiedAt = &at
	r.NotificationNote = ""
	r.touch(now)
}

// RecordNotificationFailure appends a note without touching the status.
func (r *PipelineRun) RecordNotificationFailure(note string, now time.Time) {
	r.NotificationNote = TruncateErrorMessage(note)
	r.touch(now)
}

func (r *PipelineRun) touch(now time.Time) {
	now = now.UTC()
	if now.After(r.UpdatedAt) {
		r.UpdatedAt = now
	}
}

func TruncateErrorMessage(message string) string {
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) <= MaxErrorMessageLength {
		return message
	}
	runes := []rune(message)
	return string(runes[:MaxErrorMessageLength-3]) + "..."
}
