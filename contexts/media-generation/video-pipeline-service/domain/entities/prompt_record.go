package entities

import (
	"strings"
	"time"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
)

type PromptRecord struct {
	PromptID    string
	Title       string
	Description string
	Email       string
	PromptText  string
	ModelID     string
	Approved    bool
	Category    string
	RunID       string
	TaskID      string
	CreatedAt   time.Time
}

func NewPromptRecord(
	promptID string,
	input RunInput,
	promptText string,
	modelID string,
	approved bool,
	runID string,
	taskID string,
	createdAt time.Time,
) (PromptRecord, error) {
	if strings.TrimSpace(promptID) == "" ||
		strings.TrimSpace(input.Title) == "" ||
		strings.TrimSpace(promptText) == "" {
		return PromptRecord{}, domainerrors.ErrInvalidPromptRecord
	}
	return PromptRecord{
		PromptID:    promptID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Email:       strings.TrimSpace(input.Email),
		PromptText:  strings.TrimSpace(promptText),
		ModelID:     strings.TrimSpace(modelID),
		Approved:    approved,
		Category:    strings.ToLower(strings.TrimSpace(input.Category)),
		RunID:       runID,
		TaskID:      taskID,
		CreatedAt:   createdAt.UTC(),
	}, nil
}

// NormalizeTitle is the key canonical prompt lookups match on.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// IsCanonicalFor reports whether the record may be reused for title.
func (p PromptRecord) IsCanonicalFor(title string) bool {
	return p.Approved && NormalizeTitle(p.Title) == NormalizeTitle(title)
}
