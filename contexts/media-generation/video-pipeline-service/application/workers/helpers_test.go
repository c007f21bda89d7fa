package workers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"turntable/contexts/media-generation/video-pipeline-service/adapters/memory"
	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
	"turntable/internal/platform/messaging"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type harness struct {
	clock     *manualClock
	store     *memory.Store
	broker    *messaging.Broker
	scheduler application.Scheduler
}

func newHarness() harness {
	clock := &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore(clock, nil)
	broker := messaging.NewBroker(time.Minute, nil)
	return harness{
		clock:     clock,
		store:     store,
		broker:    broker,
		scheduler: application.Scheduler{Queue: broker, Clock: clock},
	}
}

func sampleInput() entities.RunInput {
	return entities.RunInput{
		Title:           "Desk Lamp",
		Description:     "Brushed steel lamp with a warm glow",
		Email:           "maker@example.com",
		ImageRef:        "https://cdn.example.com/lamp.png",
		DurationSeconds: 5,
	}
}

func (h harness) createRun(t *testing.T, runID string, input entities.RunInput, status entities.RunStatus) {
	t.Helper()
	run, err := entities.NewPipelineRun(runID, input, h.clock.Now())
	require.NoError(t, err)
	if status != entities.RunStatusPending {
		_, err = run.Advance(status, h.clock.Now())
		require.NoError(t, err)
	}
	require.NoError(t, h.store.CreateRun(context.Background(), run))
}

func (h harness) saveState(t *testing.T, runID string, input entities.RunInput) {
	t.Helper()
	normalized, err := input.Normalize()
	require.NoError(t, err)
	require.NoError(t, application.SaveState(context.Background(), h.store, entities.PipelineState{
		RunID:     runID,
		Input:     normalized,
		CreatedAt: h.clock.Now(),
	}, time.Hour))
}

func (h harness) run(t *testing.T, runID string) entities.PipelineRun {
	t.Helper()
	run, err := h.store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	return run
}

func (h harness) queued(name string) []ports.Task {
	var out []ports.Task
	for _, task := range h.broker.Snapshot() {
		if task.Name == name {
			out = append(out, task)
		}
	}
	return out
}

type stubVideoGenerator struct {
	mu        sync.Mutex
	jobID     string
	statuses  []ports.VideoJobStatus
	submitted int
	polls     int
}

func (s *stubVideoGenerator) SubmitVideoJob(context.Context, string, string, int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted++
	return s.jobID, nil
}

func (s *stubVideoGenerator) PollVideoJob(context.Context, string) (ports.VideoJobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.polls
	if index >= len(s.statuses) {
		index = len(s.statuses) - 1
	}
	s.polls++
	return s.statuses[index], nil
}

type stubPromptGenerator struct {
	text  string
	calls int
}

func (s *stubPromptGenerator) GeneratePrompt(context.Context, string, string) (ports.GeneratedPrompt, error) {
	s.calls++
	return ports.GeneratedPrompt{Text: s.text, ModelID: "openai/gpt-4.1"}, nil
}
