package videopipelineservice

import (
	"context"
	"log/slog"
	"time"

	httpadapter "turntable/contexts/media-generation/video-pipeline-service/adapters/http"
	"turntable/contexts/media-generation/video-pipeline-service/adapters/memory"
	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/application/commands"
	"turntable/contexts/media-generation/video-pipeline-service/application/queries"
	"turntable/contexts/media-generation/video-pipeline-service/application/workers"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
	"turntable/internal/platform/messaging"
)

// Module is the composition surface for the video pipeline.
// Runtime wiring consumes Handler and Dispatcher; Store and Broker are only
// set by NewInMemoryModule and exposed for tests/inspection.
type Module struct {
	Handler      httpadapter.Handler
	Dispatcher   workers.Dispatcher
	StateExpirer *workers.StateExpirer
	Store        *memory.Store
	Broker       *messaging.Broker
}

// Collaborators are the external AI and delivery services a run calls out to.
type Collaborators struct {
	Prompts       ports.PromptGenerator
	Images        ports.ImageEditor
	Videos        ports.VideoGenerator
	Notifications ports.NotificationSender
	// Rehoster is optional; edited images are passed on as-is without it.
	Rehoster ports.AssetRehoster
}

type Dependencies struct {
	Runs        ports.RunRepository
	Prompts     ports.PromptRepository
	State       ports.StateStore
	StatePurger ports.ExpiredStatePurger
	Queue       ports.TaskQueue
	Tasks       ports.TaskSource
	Collaborators
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	// PromptIDs issues prompt ids; IDGenerator is used when nil.
	PromptIDs   ports.IDGenerator

	StateTTL           time.Duration
	AutoApprovePrompts bool
	VideoPollInterval  time.Duration
	VideoMaxPolls      int
	RetryPolicies      *workers.RetryPolicies
	WorkerID           string
	BatchSize          int
	Sleep              func(ctx context.Context, d time.Duration) error
	Logger             *slog.Logger
}

// NewModule wires the intake use case, the queries and the task runtime
// against explicit ports.
func NewModule(deps Dependencies) Module {
	promptIDs := deps.PromptIDs
	if promptIDs == nil {
		promptIDs = deps.IDGenerator
	}
	scheduler := application.Scheduler{
		Queue: deps.Queue,
		Clock: deps.Clock,
	}
	policies := workers.DefaultRetryPolicies()
	if deps.RetryPolicies != nil {
		policies = *deps.RetryPolicies
	}

	stages := workers.Stages{
		Prompt: workers.PromptStage{
			Prompts:     deps.Prompts,
			Generator:   deps.Collaborators.Prompts,
			IDGenerator: promptIDs,
			Clock:       deps.Clock,
			AutoApprove: deps.AutoApprovePrompts,
			Logger:      deps.Logger,
		},
		StartImageEdit: workers.StartImageEdit{
			Runs:      deps.Runs,
			State:     deps.State,
			Scheduler: scheduler,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		ImageEdit: workers.ImageEditStage{
			Runs:   deps.Runs,
			Editor: deps.Images,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		StartVideoGeneration: workers.StartVideoGeneration{
			Runs:      deps.Runs,
			State:     deps.State,
			Scheduler: scheduler,
			Rehoster:  deps.Rehoster,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		VideoGeneration: workers.VideoGenStage{
			Runs:         deps.Runs,
			Generator:    deps.Videos,
			Scheduler:    scheduler,
			Clock:        deps.Clock,
			PollInterval: deps.VideoPollInterval,
			MaxPolls:     deps.VideoMaxPolls,
			Sleep:        deps.Sleep,
			Logger:       deps.Logger,
		},
		Notifier: workers.Notifier{
			Runs:   deps.Runs,
			Sender: deps.Notifications,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		RunFailer: workers.RunFailer{
			Runs:   deps.Runs,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
	}

	module := Module{
		Handler: httpadapter.Handler{
			StartPipeline: commands.StartPipelineUseCase{
				Runs:        deps.Runs,
				State:       deps.State,
				Scheduler:   scheduler,
				IDGenerator: deps.IDGenerator,
				Clock:       deps.Clock,
				StateTTL:    deps.StateTTL,
				Logger:      deps.Logger,
			},
			GetRunStatus: queries.GetRunStatusUseCase{
				Runs:   deps.Runs,
				Logger: deps.Logger,
			},
			ListPrompts: queries.ListPromptsUseCase{
				Prompts: deps.Prompts,
				Logger:  deps.Logger,
			},
			Logger: deps.Logger,
		},
		Dispatcher: workers.Dispatcher{
			Tasks:     deps.Tasks,
			Scheduler: scheduler,
			Handlers:  workers.NewHandlers(stages, policies, deps.Logger),
			Clock:     deps.Clock,
			WorkerID:  deps.WorkerID,
			BatchSize: deps.BatchSize,
			Logger:    deps.Logger,
		},
	}
	if deps.StatePurger != nil {
		module.StateExpirer = &workers.StateExpirer{
			State:  deps.StatePurger,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		}
	}
	return module
}

// NewInMemoryModule wires the pipeline against the in-memory store and the
// in-process task broker. clock may be nil to use the wall clock.
func NewInMemoryModule(collaborators Collaborators, clock ports.Clock, logger *slog.Logger) Module {
	store := memory.NewStore(clock, logger)
	broker := messaging.NewBroker(messaging.DefaultLease, logger)
	module := NewModule(Dependencies{
		Runs:               store,
		Prompts:            store,
		State:              store,
		StatePurger:        store,
		Queue:              broker,
		Tasks:              broker,
		Collaborators:      collaborators,
		Clock:              store,
		IDGenerator:        store,
		StateTTL:           application.DefaultStateTTL,
		AutoApprovePrompts: true,
		WorkerID:           "in-memory",
		Logger:             logger,
	})
	module.Store = store
	module.Broker = broker
	return module
}
