package entities

import (
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
)

const (
	MaxTitleLength         = 100
	DefaultDurationSeconds = 5
)

// RunInput is the request a pipeline run was started with. It is copied into
// the state store so continuations can rebuild it in any worker process.
type RunInput struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Email           string `json:"email"`
	ImageRef        string `json:"image_ref"`
	DurationSeconds int    `json:"duration_seconds"`
	SkipImageEdit   bool   `json:"skip_image_edit"`
	Category        string `json:"category,omitempty"`
	ForceNewPrompt  bool   `json:"force_new_prompt,omitempty"`
	ClientIP        string `json:"client_ip,omitempty"`
}

// Normalize trims the input, applies the default duration and rejects
// anything a run cannot be started with.
func (in RunInput) Normalize() (RunInput, error) {
	out := in
	out.Title = strings.TrimSpace(in.Title)
	out.Description = strings.TrimSpace(in.Description)
	out.Email = strings.TrimSpace(in.Email)
	out.ImageRef = strings.TrimSpace(in.ImageRef)
	out.Category = strings.ToLower(strings.TrimSpace(in.Category))
	out.ClientIP = strings.TrimSpace(in.ClientIP)
	if out.DurationSeconds == 0 {
		out.DurationSeconds = DefaultDurationSeconds
	}

	if out.Title == "" || out.Description == "" || out.Email == "" || out.ImageRef == "" {
		return RunInput{}, domainerrors.ErrInvalidInput
	}
	if utf8.RuneCountInString(out.Title) > MaxTitleLength {
		return RunInput{}, domainerrors.ErrInvalidInput
	}
	if _, err := mail.ParseAddress(out.Email); err != nil {
		return RunInput{}, domainerrors.ErrInvalidInput
	}
	if !IsHTTPURL(out.ImageRef) {
		return RunInput{}, domainerrors.ErrInvalidInput
	}
	if out.DurationSeconds != 5 && out.DurationSeconds != 10 {
		return RunInput{}, domainerrors.ErrInvalidInput
	}
	return out, nil
}

func IsHTTPURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
