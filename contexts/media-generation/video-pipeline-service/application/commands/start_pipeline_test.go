package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turntable/contexts/media-generation/video-pipeline-service/adapters/memory"
	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/application/commands"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
	"turntable/internal/platform/messaging"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type brokenStateStore struct{}

func (brokenStateStore) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection reset")
}

func (brokenStateStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection reset")
}

type closedQueue struct{}

func (closedQueue) Enqueue(context.Context, ports.Task) error {
	return errors.New("queue closed")
}

func newUseCase(store *memory.Store, state ports.StateStore, queue ports.TaskQueue) commands.StartPipelineUseCase {
	clock := fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return commands.StartPipelineUseCase{
		Runs:        store,
		State:       state,
		Scheduler:   application.Scheduler{Queue: queue, Clock: clock},
		IDGenerator: store,
		Clock:       clock,
	}
}

func validCommand() commands.StartPipelineCommand {
	return commands.StartPipelineCommand{
		Title:       "Desk Lamp",
		Description: "Brushed steel lamp",
		Email:       "maker@example.com",
		ImageRef:    "https://cdn.example.com/lamp.png",
	}
}

func TestStartPipelineAcceptsRunAndQueuesPrompt(t *testing.T) {
	store := memory.NewStore(nil, nil)
	broker := messaging.NewBroker(time.Minute, nil)
	result, err := newUseCase(store, store, broker).Execute(context.Background(), validCommand())
	require.NoError(t, err)
	assert.Equal(t, entities.RunStatusPending, result.Status)

	run, err := store.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, entities.RunStatusPending, run.Status)
	assert.Equal(t, entities.DefaultDurationSeconds, run.Input.DurationSeconds)

	state, err := application.LoadState(context.Background(), store, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", state.Input.Title)

	queued := broker.Snapshot()
	require.Len(t, queued, 1)
	assert.Equal(t, application.TaskGeneratePrompt, queued[0].Name)
	assert.Equal(t, application.TaskStartImageEdit, queued[0].Continuation)
}

func TestStartPipelineRejectsInvalidInputWithoutCreatingRun(t *testing.T) {
	store := memory.NewStore(nil, nil)
	broker := messaging.NewBroker(time.Minute, nil)
	cmd := validCommand()
	cmd.DurationSeconds = 7

	_, err := newUseCase(store, store, broker).Execute(context.Background(), cmd)
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	_, err = store.GetRun(context.Background(), "vp-1")
	assert.ErrorIs(t, err, domainerrors.ErrRunNotFound)
	assert.Zero(t, broker.Pending())
}

func TestStartPipelineSkipPathRejectsUnsupportedFormat(t *testing.T) {
	store := memory.NewStore(nil, nil)
	broker := messaging.NewBroker(time.Minute, nil)
	cmd := validCommand()
	cmd.ImageRef = "https://cdn.example.com/spec-sheet.pdf"
	cmd.SkipImageEdit = true

	result, err := newUseCase(store, store, broker).Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, entities.RunStatusFailed, result.Status)

	run, err := store.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, entities.FailureKindValidation, run.FailureKind)
	assert.Zero(t, broker.Pending())
}

func TestStartPipelineFailsRunWhenStateWriteFails(t *testing.T) {
	store := memory.NewStore(nil, nil)
	broker := messaging.NewBroker(time.Minute, nil)

	result, err := newUseCase(store, brokenStateStore{}, broker).Execute(context.Background(), validCommand())
	require.ErrorIs(t, err, domainerrors.ErrStateStore)

	run, getErr := store.GetRun(context.Background(), result.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, entities.RunStatusFailed, run.Status)
	assert.Equal(t, entities.FailureKindStateStore, run.FailureKind)
	assert.Zero(t, broker.Pending())
}

func TestStartPipelineFailsRunWhenQueueRejects(t *testing.T) {
	store := memory.NewStore(nil, nil)

	result, err := newUseCase(store, store, closedQueue{}).Execute(context.Background(), validCommand())
	require.ErrorIs(t, err, domainerrors.ErrQueueUnavailable)

	run, getErr := store.GetRun(context.Background(), result.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, entities.FailureKindQueue, run.FailureKind)
}
