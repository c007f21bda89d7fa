package workers_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/application/workers"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

func videoTask(t *testing.T, runID string) ports.Task {
	t.Helper()
	payload, err := json.Marshal(application.VideoPayload{
		ImageRef:        "https://cdn.example.com/edited.png",
		PromptText:      "slow turntable spin",
		PromptID:        "prompt-1",
		DurationSeconds: 5,
	})
	require.NoError(t, err)
	return ports.Task{TaskID: "task-1", Name: application.TaskGenerateVideo, RunID: runID, Payload: payload}
}

func newVideoStage(h harness, generator ports.VideoGenerator, maxPolls int, sleeps *int) workers.VideoGenStage {
	return workers.VideoGenStage{
		Runs:         h.store,
		Generator:    generator,
		Scheduler:    h.scheduler,
		Clock:        h.clock,
		PollInterval: time.Second,
		MaxPolls:     maxPolls,
		Sleep: func(context.Context, time.Duration) error {
			*sleeps++
			return nil
		},
	}
}

func TestVideoGenStagePollsUntilCompleted(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusProcessingVideo)
	generator := &stubVideoGenerator{
		jobID: "job-1",
		statuses: []ports.VideoJobStatus{
			{State: ports.VideoJobQueued},
			{State: ports.VideoJobInProgress},
			{State: ports.VideoJobCompleted, ResultRef: "https://videos.example.com/out.mp4"},
		},
	}
	sleeps := 0

	result, err := newVideoStage(h, generator, 10, &sleeps).Execute(context.Background(), videoTask(t, "run-1"))
	require.NoError(t, err)
	assert.Equal(t, "https://videos.example.com/out.mp4", result.VideoRef)
	assert.Equal(t, 1, generator.submitted)
	assert.Equal(t, 3, generator.polls)
	assert.Equal(t, 2, sleeps)
	assert.Equal(t, "job-1", h.run(t, "run-1").VideoJobID)
}

func TestVideoGenStageResumesRecordedJob(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusProcessingVideo)
	_, err := h.store.UpdateRun(context.Background(), "run-1", func(run *entities.PipelineRun) error {
		run.RecordVideoJob("job-earlier", h.clock.Now())
		return nil
	})
	require.NoError(t, err)
	generator := &stubVideoGenerator{
		statuses: []ports.VideoJobStatus{{State: ports.VideoJobCompleted, ResultRef: "https://videos.example.com/out.mp4"}},
	}
	sleeps := 0

	result, err := newVideoStage(h, generator, 10, &sleeps).Execute(context.Background(), videoTask(t, "run-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, generator.submitted)
	assert.Equal(t, "https://videos.example.com/out.mp4", result.VideoRef)
}

func TestVideoGenStageTimesOutAfterMaxPolls(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusProcessingVideo)
	generator := &stubVideoGenerator{jobID: "job-1", statuses: []ports.VideoJobStatus{{State: ports.VideoJobInProgress}}}
	sleeps := 0

	_, err := newVideoStage(h, generator, 3, &sleeps).Execute(context.Background(), videoTask(t, "run-1"))
	require.ErrorIs(t, err, domainerrors.ErrVideoTimeout)
	assert.Equal(t, 3, generator.polls)
	assert.Equal(t, 2, sleeps)
}

func TestVideoGenStageSurfacesJobFailureDetail(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusProcessingVideo)
	generator := &stubVideoGenerator{
		jobID:    "job-1",
		statuses: []ports.VideoJobStatus{{State: ports.VideoJobFailed, ErrorDetail: "content policy"}},
	}
	sleeps := 0

	_, err := newVideoStage(h, generator, 3, &sleeps).Execute(context.Background(), videoTask(t, "run-1"))
	require.ErrorIs(t, err, domainerrors.ErrCollaboratorFailed)
	assert.Contains(t, err.Error(), "content policy")
}

func TestVideoGenStageReturnsStoredOutcomeForCompletedRun(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusProcessingVideo)
	_, err := h.store.UpdateRun(context.Background(), "run-1", func(run *entities.PipelineRun) error {
		_, err := run.MarkCompleted("https://videos.example.com/out.mp4", h.clock.Now())
		return err
	})
	require.NoError(t, err)
	generator := &stubVideoGenerator{}
	sleeps := 0

	result, err := newVideoStage(h, generator, 3, &sleeps).Execute(context.Background(), videoTask(t, "run-1"))
	require.NoError(t, err)
	assert.Equal(t, "https://videos.example.com/out.mp4", result.VideoRef)
	assert.Zero(t, generator.submitted)
	assert.Zero(t, generator.polls)
}

func TestVideoGenCompleteMarksRunAndQueuesNotification(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusProcessingVideo)
	sleeps := 0
	stage := newVideoStage(h, &stubVideoGenerator{}, 3, &sleeps)

	err := stage.Complete(context.Background(), videoTask(t, "run-1"), entities.StepResult{
		Status:   entities.StepStatusSuccess,
		VideoRef: "https://videos.example.com/out.mp4",
	})
	require.NoError(t, err)

	run := h.run(t, "run-1")
	assert.Equal(t, entities.RunStatusCompleted, run.Status)
	assert.Equal(t, "https://videos.example.com/out.mp4", run.OutputRef)
	assert.Len(t, h.queued(application.TaskNotify), 1)
}

func TestVideoGenCompleteRecordsFailure(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusProcessingVideo)
	sleeps := 0
	stage := newVideoStage(h, &stubVideoGenerator{}, 3, &sleeps)

	err := stage.Complete(context.Background(), videoTask(t, "run-1"),
		entities.FailedStep(workers.StageVideoGeneration, entities.FailureKindTimeout, "job unfinished"))
	require.NoError(t, err)

	run := h.run(t, "run-1")
	assert.Equal(t, entities.RunStatusFailed, run.Status)
	assert.Equal(t, entities.FailureKindTimeout, run.FailureKind)
	assert.Empty(t, h.queued(application.TaskNotify))
}
