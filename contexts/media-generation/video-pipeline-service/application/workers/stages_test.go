package workers_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/application/workers"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

func promptTask(t *testing.T, payload application.PromptPayload) ports.Task {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return ports.Task{TaskID: "task-p", Name: application.TaskGeneratePrompt, RunID: "run-1", Payload: raw}
}

func resultTask(t *testing.T, name string, result entities.StepResult) ports.Task {
	t.Helper()
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	return ports.Task{TaskID: "task-c", Name: name, RunID: "run-1", Payload: raw}
}

func TestPromptStageGeneratesAndStoresPrompt(t *testing.T) {
	h := newHarness()
	generator := &stubPromptGenerator{text: "  Rotate the lamp on a slow turntable.  "}
	stage := workers.PromptStage{Prompts: h.store, Generator: generator, IDGenerator: h.store, Clock: h.clock, AutoApprove: true}

	result, err := stage.Execute(context.Background(), promptTask(t, application.PromptPayload{
		Title:       "Desk Lamp",
		Description: "Brushed steel",
		Email:       "maker@example.com",
		Category:    "furniture",
	}))
	require.NoError(t, err)
	assert.False(t, result.Reused)
	assert.True(t, len(result.PromptText) > len("Rotate the lamp on a slow turntable."))

	prompts := h.store.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, result.PromptID, prompts[0].PromptID)
	assert.Equal(t, "run-1", prompts[0].RunID)
	assert.Equal(t, "openai/gpt-4.1", prompts[0].ModelID)
	assert.True(t, prompts[0].Approved)
}

func TestPromptStageReusesCanonicalPrompt(t *testing.T) {
	h := newHarness()
	existing, err := entities.NewPromptRecord("p-canonical", sampleInput(), "approved prompt", "model", true, "run-0", "task-0", h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, h.store.CreatePrompt(context.Background(), existing))
	generator := &stubPromptGenerator{text: "fresh"}
	stage := workers.PromptStage{Prompts: h.store, Generator: generator, IDGenerator: h.store, Clock: h.clock}

	result, err := stage.Execute(context.Background(), promptTask(t, application.PromptPayload{Title: "desk lamp", Description: "x", Email: "maker@example.com"}))
	require.NoError(t, err)
	assert.True(t, result.Reused)
	assert.Equal(t, "p-canonical", result.PromptID)
	assert.Zero(t, generator.calls)

	forced, err := stage.Execute(context.Background(), promptTask(t, application.PromptPayload{Title: "desk lamp", Description: "x", Email: "maker@example.com", ForceNew: true}))
	require.NoError(t, err)
	assert.False(t, forced.Reused)
	assert.Equal(t, 1, generator.calls)
}

func TestStartImageEditQueuesEditAndAdvancesRun(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusPending)
	h.saveState(t, "run-1", sampleInput())
	stage := workers.StartImageEdit{Runs: h.store, State: h.store, Scheduler: h.scheduler, Clock: h.clock}

	result, err := stage.Execute(context.Background(), resultTask(t, application.TaskStartImageEdit, entities.StepResult{
		Status: entities.StepStatusSuccess, PromptText: "spin", PromptID: "p-1",
	}))
	require.NoError(t, err)
	assert.True(t, result.Succeeded())

	run := h.run(t, "run-1")
	assert.Equal(t, entities.RunStatusProcessing, run.Status)
	assert.Equal(t, "p-1", run.PromptID)
	edits := h.queued(application.TaskEditImage)
	require.Len(t, edits, 1)
	assert.Equal(t, application.TaskStartVideoGeneration, edits[0].Continuation)
}

func TestStartImageEditFailsRunWhenStateMissing(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusPending)
	stage := workers.StartImageEdit{Runs: h.store, State: h.store, Scheduler: h.scheduler, Clock: h.clock}
	failer := workers.RunFailer{Runs: h.store, Clock: h.clock}
	task := resultTask(t, application.TaskStartImageEdit, entities.StepResult{Status: entities.StepStatusSuccess, PromptText: "spin"})

	result, err := stage.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, entities.FailureKindStateMissing, result.ErrorKind)
	require.NoError(t, failer.Complete(context.Background(), task, result))

	run := h.run(t, "run-1")
	assert.Equal(t, entities.RunStatusFailed, run.Status)
	assert.Equal(t, entities.FailureKindStateMissing, run.FailureKind)
	assert.Empty(t, h.queued(application.TaskEditImage))
}

func TestStartImageEditSkipPathQueuesVideoDirectly(t *testing.T) {
	h := newHarness()
	input := sampleInput()
	input.SkipImageEdit = true
	h.createRun(t, "run-1", input, entities.RunStatusPending)
	h.saveState(t, "run-1", input)
	stage := workers.StartImageEdit{Runs: h.store, State: h.store, Scheduler: h.scheduler, Clock: h.clock}

	_, err := stage.Execute(context.Background(), resultTask(t, application.TaskStartImageEdit, entities.StepResult{
		Status: entities.StepStatusSuccess, PromptText: "spin", PromptID: "p-1",
	}))
	require.NoError(t, err)

	assert.Equal(t, entities.RunStatusProcessingVideo, h.run(t, "run-1").Status)
	assert.Empty(t, h.queued(application.TaskEditImage))
	videos := h.queued(application.TaskGenerateVideo)
	require.Len(t, videos, 1)
	var payload application.VideoPayload
	require.NoError(t, json.Unmarshal(videos[0].Payload, &payload))
	assert.Equal(t, input.ImageRef, payload.ImageRef)
}

func TestStartImageEditSupersededForAdvancedRun(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusProcessingVideo)
	h.saveState(t, "run-1", sampleInput())
	stage := workers.StartImageEdit{Runs: h.store, State: h.store, Scheduler: h.scheduler, Clock: h.clock}

	result, err := stage.Execute(context.Background(), resultTask(t, application.TaskStartImageEdit, entities.StepResult{
		Status: entities.StepStatusSuccess, PromptText: "spin",
	}))
	require.NoError(t, err)
	assert.True(t, result.Superseded)
	assert.Zero(t, h.broker.Pending())
}

type recordingSender struct {
	sent []ports.VideoReadyNotification
}

func (s *recordingSender) SendVideoReady(_ context.Context, notification ports.VideoReadyNotification) error {
	s.sent = append(s.sent, notification)
	return nil
}

func TestNotifierSendsOnceForCompletedRun(t *testing.T) {
	h := newHarness()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusProcessingVideo)
	_, err := h.store.UpdateRun(context.Background(), "run-1", func(run *entities.PipelineRun) error {
		_, err := run.MarkCompleted("https://videos.example.com/out.mp4", h.clock.Now())
		return err
	})
	require.NoError(t, err)
	sender := &recordingSender{}
	notifier := workers.Notifier{Runs: h.store, Sender: sender, Clock: h.clock}
	task := ports.Task{TaskID: "n-1", Name: application.TaskNotify, RunID: "run-1"}

	_, err = notifier.Execute(context.Background(), task)
	require.NoError(t, err)
	again, err := notifier.Execute(context.Background(), task)
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "maker@example.com", sender.sent[0].Email)
	assert.True(t, again.Superseded)
	assert.NotNil(t, h.run(t, "run-1").NotifiedAt)
}
