package services

import (
	"errors"

	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
)

// ClassifyFailure maps an error onto the failure kind recorded on a run.
func ClassifyFailure(err error) entities.FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domainerrors.ErrStateMissing):
		return entities.FailureKindStateMissing
	case errors.Is(err, domainerrors.ErrStateStore):
		return entities.FailureKindStateStore
	case errors.Is(err, domainerrors.ErrVideoTimeout):
		return entities.FailureKindTimeout
	case errors.Is(err, domainerrors.ErrInvalidInput),
		errors.Is(err, domainerrors.ErrUnsupportedSourceFormat),
		errors.Is(err, domainerrors.ErrInvalidTaskPayload):
		return entities.FailureKindValidation
	case errors.Is(err, domainerrors.ErrQueueUnavailable):
		return entities.FailureKindQueue
	case errors.Is(err, domainerrors.ErrPersistence),
		errors.Is(err, domainerrors.ErrRepositoryInvariantBroke):
		return entities.FailureKindPersistence
	default:
		return entities.FailureKindCollaborator
	}
}
