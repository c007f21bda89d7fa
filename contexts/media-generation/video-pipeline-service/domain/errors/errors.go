package errors

import "errors"

var (
	ErrInvalidInput             = errors.New("invalid pipeline input")
	ErrRunNotFound              = errors.New("pipeline run not found")
	ErrInvalidPromptRecord      = errors.New("invalid prompt record")
	ErrInvalidTransition        = errors.New("invalid run status transition")
	ErrStaleTransition          = errors.New("run already advanced past requested status")
	ErrRunFinalized             = errors.New("run already finalized")
	ErrStateMissing             = errors.New("pipeline state missing or expired")
	ErrStateStore               = errors.New("state store write failed")
	ErrQueueUnavailable         = errors.New("task queue submission failed")
	ErrTransient                = errors.New("transient collaborator error")
	ErrMalformedResponse        = errors.New("malformed collaborator response")
	ErrCollaboratorFailed       = errors.New("collaborator reported failure")
	ErrVideoTimeout             = errors.New("video generation timed out")
	ErrUnsupportedSourceFormat  = errors.New("source image format is not accepted by the video generator")
	ErrPersistence              = errors.New("persistence failure")
	ErrInvalidTaskPayload       = errors.New("invalid task payload")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
)
