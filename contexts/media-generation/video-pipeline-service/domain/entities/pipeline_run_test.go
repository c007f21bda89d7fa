package entities_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRun(t *testing.T) entities.PipelineRun {
	t.Helper()
	run, err := entities.NewPipelineRun("run-1", entities.RunInput{
		Title:       "Lamp",
		Description: "A lamp",
		Email:       "a@b.com",
		ImageRef:    "https://cdn.example/lamp.png",
	}, baseTime)
	require.NoError(t, err)
	return run
}

func TestNewPipelineRunStartsPending(t *testing.T) {
	run := newRun(t)
	assert.Equal(t, entities.RunStatusPending, run.Status)
	assert.Equal(t, entities.DefaultDurationSeconds, run.Input.DurationSeconds)
	assert.Equal(t, baseTime, run.CreatedAt)
	assert.Equal(t, baseTime, run.UpdatedAt)
}

func TestAdvanceMovesForwardOnly(t *testing.T) {
	run := newRun(t)

	changed, err := run.Advance(entities.RunStatusProcessing, baseTime.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = run.Advance(entities.RunStatusProcessing, baseTime.Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, changed, "re-applying the same status must be a no-op")

	changed, err = run.Advance(entities.RunStatusProcessingVideo, baseTime.Add(3*time.Second))
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = run.Advance(entities.RunStatusProcessingImage, baseTime.Add(4*time.Second))
	assert.ErrorIs(t, err, domainerrors.ErrStaleTransition)
	assert.Equal(t, entities.RunStatusProcessingVideo, run.Status)

	_, err = run.Advance(entities.RunStatusCompleted, baseTime)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	run := newRun(t)
	_, err := run.Advance(entities.RunStatusProcessingVideo, baseTime.Add(time.Second))
	require.NoError(t, err)

	changed, err := run.MarkCompleted("https://cdn.example/video.mp4", baseTime.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = run.MarkCompleted("https://cdn.example/video.mp4", baseTime.Add(3*time.Second))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, entities.RunStatusCompleted, run.Status)
	assert.Equal(t, "https://cdn.example/video.mp4", run.OutputRef)

	_, err = run.MarkCompleted("https://cdn.example/other.mp4", baseTime.Add(4*time.Second))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)
	assert.Equal(t, "https://cdn.example/video.mp4", run.OutputRef)
}

func TestMarkCompletedClearsStaleError(t *testing.T) {
	run := newRun(t)
	run.ErrorMessage = "earlier poll hiccup"
	run.FailureKind = entities.FailureKindCollaborator

	_, err := run.MarkCompleted("https://cdn.example/video.mp4", baseTime.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, run.ErrorMessage)
	assert.Empty(t, run.FailureKind)
}

func TestFailedReachableFromAnyNonTerminalStatus(t *testing.T) {
	for _, status := range []entities.RunStatus{
		entities.RunStatusPending,
		entities.RunStatusProcessing,
		entities.RunStatusProcessingImage,
		entities.RunStatusProcessingVideo,
	} {
		run := newRun(t)
		run.Status = status
		changed, err := run.MarkFailed(entities.FailureKindCollaborator, "boom", baseTime.Add(time.Second))
		require.NoError(t, err, status)
		assert.True(t, changed, status)
		assert.Equal(t, entities.RunStatusFailed, run.Status)
	}
}

func TestTerminalRunsRejectFurtherTransitions(t *testing.T) {
	run := newRun(t)
	_, err := run.MarkCompleted("https://cdn.example/video.mp4", baseTime.Add(time.Second))
	require.NoError(t, err)

	_, err = run.MarkFailed(entities.FailureKindCollaborator, "late failure", baseTime.Add(2*time.Second))
	assert.ErrorIs(t, err, domainerrors.ErrRunFinalized)
	assert.Equal(t, entities.RunStatusCompleted, run.Status)

	_, err = run.Advance(entities.RunStatusProcessing, baseTime.Add(3*time.Second))
	assert.ErrorIs(t, err, domainerrors.ErrRunFinalized)

	run.RecordNotificationFailure("smtp down", baseTime.Add(4*time.Second))
	assert.Equal(t, entities.RunStatusCompleted, run.Status)
	assert.Equal(t, "smtp down", run.NotificationNote)
}

func TestMarkFailedKeepsFirstErrorAndTruncates(t *testing.T) {
	run := newRun(t)
	long := strings.Repeat("x", entities.MaxErrorMessageLength*2)

	_, err := run.MarkFailed(entities.FailureKindTimeout, long, baseTime.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, []rune(run.ErrorMessage), entities.MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(run.ErrorMessage, "..."))

	changed, err := run.MarkFailed(entities.FailureKindCollaborator, "second", baseTime.Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, entities.FailureKindTimeout, run.FailureKind)
}

func TestUpdatedAtNeverDecreases(t *testing.T) {
	run := newRun(t)
	_, err := run.Advance(entities.RunStatusProcessing, baseTime.Add(time.Minute))
	require.NoError(t, err)

	run.AttachPrompt("prompt-1", baseTime.Add(-time.Hour))
	assert.Equal(t, baseTime.Add(time.Minute), run.UpdatedAt)
	assert.Equal(t, "prompt-1", run.PromptID)

	run.AttachPrompt("prompt-2", baseTime.Add(2*time.Minute))
	assert.Equal(t, "prompt-1", run.PromptID, "first attached prompt wins")
}
