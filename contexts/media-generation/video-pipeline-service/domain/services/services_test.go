package services_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/domain/services"
)

func TestEnhanceForCategory(t *testing.T) {
	got := services.EnhanceForCategory("Rotate the watch.", "Jewelry")
	assert.Equal(t, "Rotate the watch. Use macro shots and dramatic lighting to capture sparkle and detail.", got)
	assert.Equal(t, got, services.EnhanceForCategory(got, "jewelry"), "enhancement is applied once")
	assert.Equal(t, "Rotate the watch.", services.EnhanceForCategory("Rotate the watch.", "toys"))
}

func TestAcceptsAsVideoSource(t *testing.T) {
	assert.True(t, services.AcceptsAsVideoSource("https://cdn.example/lamp.png"))
	assert.True(t, services.AcceptsAsVideoSource("https://cdn.example/lamp.JPG?sig=abc"))
	assert.True(t, services.AcceptsAsVideoSource("https://cdn.example/lamp.webp"))
	assert.False(t, services.AcceptsAsVideoSource("https://cdn.example/lamp.pdf"))
	assert.False(t, services.AcceptsAsVideoSource("https://cdn.example/lamp"))
	assert.False(t, services.AcceptsAsVideoSource(""))
}

func TestClassifyFailure(t *testing.T) {
	assert.Equal(t, entities.FailureKindStateMissing, services.ClassifyFailure(fmt.Errorf("load: %w", domainerrors.ErrStateMissing)))
	assert.Equal(t, entities.FailureKindTimeout, services.ClassifyFailure(domainerrors.ErrVideoTimeout))
	assert.Equal(t, entities.FailureKindValidation, services.ClassifyFailure(domainerrors.ErrUnsupportedSourceFormat))
	assert.Equal(t, entities.FailureKindCollaborator, services.ClassifyFailure(fmt.Errorf("%w: 503", domainerrors.ErrTransient)))
	assert.Empty(t, services.ClassifyFailure(nil))
}
