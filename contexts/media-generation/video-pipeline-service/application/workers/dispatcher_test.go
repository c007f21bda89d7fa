package workers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/application/retry"
	"turntable/contexts/media-generation/video-pipeline-service/application/workers"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

func newDispatcher(h harness, handlers map[string]workers.Handler) workers.Dispatcher {
	return workers.Dispatcher{
		Tasks:     h.broker,
		Scheduler: h.scheduler,
		Handlers:  handlers,
		Clock:     h.clock,
		WorkerID:  "test-worker",
	}
}

func TestDispatcherReschedulesTransientFailure(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	dispatcher := newDispatcher(h, map[string]workers.Handler{
		"flaky": {
			Stage:  "flaky",
			Policy: retry.DefaultPolicy(2),
			Execute: func(context.Context, ports.Task) (entities.StepResult, error) {
				return entities.StepResult{}, fmt.Errorf("%w: 503", domainerrors.ErrTransient)
			},
		},
	})
	_, err := h.scheduler.Schedule(ctx, "flaky", "run-1", map[string]string{"k": "v"}, "next")
	require.NoError(t, err)

	claimed, err := dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)

	pending := h.broker.Snapshot()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempt)
	assert.Equal(t, "next", pending[0].Continuation)
	assert.Equal(t, h.clock.Now().Add(time.Second), pending[0].NotBefore)
}

func TestDispatcherQueuesContinuationWithResult(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	completed := 0
	dispatcher := newDispatcher(h, map[string]workers.Handler{
		"produce": {
			Stage:  "produce",
			Policy: retry.DefaultPolicy(0),
			Execute: func(context.Context, ports.Task) (entities.StepResult, error) {
				return entities.StepResult{PromptText: "spin slowly", PromptID: "p-1"}, nil
			},
			Complete: func(context.Context, ports.Task, entities.StepResult) error {
				completed++
				return nil
			},
		},
	})
	_, err := h.scheduler.Schedule(ctx, "produce", "run-1", struct{}{}, "consume")
	require.NoError(t, err)

	_, err = dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)

	next := h.queued("consume")
	require.Len(t, next, 1)
	var result entities.StepResult
	require.NoError(t, json.Unmarshal(next[0].Payload, &result))
	assert.True(t, result.Succeeded())
	assert.Equal(t, "produce", result.Stage)
	assert.Equal(t, "spin slowly", result.PromptText)
	assert.Empty(t, h.queued("produce"))
}

func TestDispatcherPassesFailedResultToContinuation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	dispatcher := newDispatcher(h, map[string]workers.Handler{
		"produce": {
			Stage:  "produce",
			Policy: retry.DefaultPolicy(0),
			Execute: func(context.Context, ports.Task) (entities.StepResult, error) {
				return entities.StepResult{}, fmt.Errorf("%w: 429", domainerrors.ErrTransient)
			},
		},
	})
	_, err := h.scheduler.Schedule(ctx, "produce", "run-1", struct{}{}, "consume")
	require.NoError(t, err)

	_, err = dispatcher.RunOnce(ctx)
	require.NoError(t, err)

	next := h.queued("consume")
	require.Len(t, next, 1)
	var result entities.StepResult
	require.NoError(t, json.Unmarshal(next[0].Payload, &result))
	assert.False(t, result.Succeeded())
	assert.True(t, result.RetriesExhausted)
}

func TestDispatcherSupersededResultStopsChain(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	dispatcher := newDispatcher(h, map[string]workers.Handler{
		"dup": {
			Stage:  "dup",
			Policy: retry.DefaultPolicy(0),
			Execute: func(context.Context, ports.Task) (entities.StepResult, error) {
				return entities.SupersededStep("dup"), nil
			},
			Complete: func(context.Context, ports.Task, entities.StepResult) error {
				t.Fatal("complete hook must not run")
				return nil
			},
		},
	})
	_, err := h.scheduler.Schedule(ctx, "dup", "run-1", struct{}{}, "consume")
	require.NoError(t, err)

	_, err = dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, h.broker.Pending())
}

func TestDispatcherAcksUnknownTask(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, err := h.scheduler.Schedule(ctx, "nobody.handles.this", "run-1", struct{}{}, "")
	require.NoError(t, err)

	claimed, err := newDispatcher(h, nil).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Zero(t, h.broker.Pending())
}

func TestDispatcherLeavesTaskWhenCompleteHookFails(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	dispatcher := newDispatcher(h, map[string]workers.Handler{
		"produce": {
			Stage:  "produce",
			Policy: retry.DefaultPolicy(0),
			Execute: func(context.Context, ports.Task) (entities.StepResult, error) {
				return entities.StepResult{}, nil
			},
			Complete: func(context.Context, ports.Task, entities.StepResult) error {
				return fmt.Errorf("%w: db down", domainerrors.ErrPersistence)
			},
		},
	})
	_, err := h.scheduler.Schedule(ctx, "produce", "run-1", struct{}{}, "consume")
	require.NoError(t, err)

	_, err = dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, h.queued("produce"), 1)
	assert.Empty(t, h.queued("consume"))
}

type countingEditor struct{ calls int }

func (e *countingEditor) EditImage(context.Context, string, string) (string, error) {
	e.calls++
	return "https://cdn.example.com/edited.png", nil
}

func TestDispatcherRedeliveredContinuationQueuesImageEditOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.createRun(t, "run-1", sampleInput(), entities.RunStatusPending)
	h.saveState(t, "run-1", sampleInput())
	editor := &countingEditor{}
	dispatcher := newDispatcher(h, workers.NewHandlers(workers.Stages{
		StartImageEdit: workers.StartImageEdit{Runs: h.store, State: h.store, Scheduler: h.scheduler, Clock: h.clock},
		ImageEdit:      workers.ImageEditStage{Runs: h.store, Editor: editor, Clock: h.clock},
		RunFailer:      workers.RunFailer{Runs: h.store, Clock: h.clock},
	}, workers.DefaultRetryPolicies(), nil))
	task := resultTask(t, application.TaskStartImageEdit, entities.StepResult{
		Status: entities.StepStatusSuccess, Stage: workers.StagePrompt, PromptText: "spin", PromptID: "p-1",
	})

	require.NoError(t, dispatcher.Dispatch(ctx, task))
	require.NoError(t, dispatcher.Dispatch(ctx, task))
	edits := h.queued(application.TaskEditImage)
	require.Len(t, edits, 1)
	assert.Equal(t, application.TaskKey("run-1", application.TaskEditImage, 0), edits[0].TaskID)

	_, err := dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Dispatch(ctx, task))

	assert.Equal(t, 1, editor.calls)
	assert.Empty(t, h.queued(application.TaskEditImage))
	assert.Len(t, h.queued(application.TaskStartVideoGeneration), 1)
	assert.Equal(t, entities.RunStatusProcessingImage, h.run(t, "run-1").Status)
}
