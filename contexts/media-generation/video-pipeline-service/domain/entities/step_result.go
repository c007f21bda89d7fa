package entities

type FailureKind string

const (
	FailureKindValidation   FailureKind = "validation"
	FailureKindStateStore   FailureKind = "state_store"
	FailureKindStateMissing FailureKind = "state_missing"
	FailureKindCollaborator FailureKind = "collaborator"
	FailureKindTimeout      FailureKind = "timeout"
	FailureKindPersistence  FailureKind = "persistence"
	FailureKindQueue        FailureKind = "queue"
)

type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
)

// StepResult is the envelope a stage hands to its continuation. Continuations
// must check Status before reading any payload field.
type StepResult struct {
	Status           StepStatus  `json:"status"`
	Stage            string      `json:"stage"`
	PromptText       string      `json:"prompt_text,omitempty"`
	PromptID         string      `json:"prompt_id,omitempty"`
	Reused           bool        `json:"reused,omitempty"`
	ImageRef         string      `json:"image_ref,omitempty"`
	VideoRef         string      `json:"video_ref,omitempty"`
	Error            string      `json:"error,omitempty"`
	ErrorKind        FailureKind `json:"error_kind,omitempty"`
	RetriesExhausted bool        `json:"retries_exhausted,omitempty"`
	// Superseded marks a duplicate delivery for a run that already moved on.
	// Nothing downstream may act on it.
	Superseded bool `json:"superseded,omitempty"`
}

func (r StepResult) Succeeded() bool {
	return r.Status == StepStatusSuccess
}

func SupersededStep(stage string) StepResult {
	return StepResult{Status: StepStatusSuccess, Stage: stage, Superseded: true}
}

func FailedStep(stage string, kind FailureKind, message string) StepResult {
	if kind == "" {
		kind = FailureKindCollaborator
	}
	return StepResult{
		Status:    StepStatusFailed,
		Stage:     stage,
		Error:     TruncateErrorMessage(message),
		ErrorKind: kind,
	}
}
