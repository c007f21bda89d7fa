package application

import (
	"encoding/json"
	"fmt"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

type PromptPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Email       string `json:"email"`
	Category    string `json:"category,omitempty"`
	ForceNew    bool   `json:"force_new,omitempty"`
}

type ImageEditPayload struct {
	ImageRef   string `json:"image_ref"`
	PromptText string `json:"prompt_text"`
	PromptID   string `json:"prompt_id"`
}

type VideoPayload struct {
	ImageRef        string `json:"image_ref"`
	PromptText      string `json:"prompt_text"`
	PromptID        string `json:"prompt_id"`
	DurationSeconds int    `json:"duration_seconds"`
}

type NotifyPayload struct{}

func DecodePayload[T any](task ports.Task) (T, error) {
	var payload T
	if len(task.Payload) == 0 {
		return payload, fmt.Errorf("%w: %s has no payload", domainerrors.ErrInvalidTaskPayload, task.Name)
	}
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return payload, fmt.Errorf("%w: %s: %w", domainerrors.ErrInvalidTaskPayload, task.Name, err)
	}
	return payload, nil
}
