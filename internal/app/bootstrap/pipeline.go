package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	videopipelineservice "turntable/contexts/media-generation/video-pipeline-service"
	assetsadapter "turntable/contexts/media-generation/video-pipeline-service/adapters/assets"
	faladapter "turntable/contexts/media-generation/video-pipeline-service/adapters/fal"
	mailadapter "turntable/contexts/media-generation/video-pipeline-service/adapters/mail"
	"turntable/contexts/media-generation/video-pipeline-service/adapters/memory"
	openaiadapter "turntable/contexts/media-generation/video-pipeline-service/adapters/openai"
	postgresadapter "turntable/contexts/media-generation/video-pipeline-service/adapters/postgres"
	sqliteadapter "turntable/contexts/media-generation/video-pipeline-service/adapters/sqlite"
	"turntable/contexts/media-generation/video-pipeline-service/application/retry"
	"turntable/contexts/media-generation/video-pipeline-service/application/workers"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
	"turntable/internal/platform/config"
	"turntable/internal/platform/db"
	"turntable/internal/platform/messaging"
)

const appTitle = "Product Video Generator"

// pipelineRuntime is everything one process needs to serve or work the
// pipeline, plus what must be closed on shutdown.
type pipelineRuntime struct {
	module  videopipelineservice.Module
	broker  *messaging.Broker
	closers []io.Closer
}

func (r *pipelineRuntime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildPipeline(cfg config.Config, workerID string, logger *slog.Logger) (*pipelineRuntime, error) {
	runtime := &pipelineRuntime{}
	clock := postgresadapter.SystemClock{}

	deps := videopipelineservice.Dependencies{
		Clock:              clock,
		IDGenerator:        postgresadapter.UUIDGenerator{},
		PromptIDs:          postgresadapter.ULIDGenerator{},
		StateTTL:           cfg.StateTTL,
		AutoApprovePrompts: cfg.Prompts.AutoApprove,
		VideoPollInterval:  cfg.Providers.VideoPollInterval,
		VideoMaxPolls:      cfg.Providers.VideoMaxPolls,
		RetryPolicies:      retryPolicies(cfg.Retry),
		WorkerID:           workerID,
		BatchSize:          cfg.Worker.BatchSize,
		Logger:             logger,
	}

	var pg *db.Postgres
	if cfg.NeedsPostgres() {
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required")
		}
		var err error
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		runtime.closers = append(runtime.closers, pg)
		if cfg.AutoMigrate {
			if err := pg.Migrate(postgresadapter.Models()...); err != nil {
				_ = runtime.Close()
				return nil, err
			}
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		deps.Runs = repo
		deps.Prompts = repo
	} else {
		store := memory.NewStore(clock, logger)
		deps.Runs = store
		deps.Prompts = store
		deps.State = store
		deps.StatePurger = store
	}

	switch cfg.StateDriver {
	case config.DriverPostgres:
		if pg == nil {
			_ = runtime.Close()
			return nil, errors.New("postgres state store requires POSTGRES_DSN")
		}
		state := postgresadapter.NewStateStore(pg.DB, clock)
		deps.State = state
		deps.StatePurger = state
	case config.DriverSQLite:
		state, err := sqliteadapter.OpenStateStore(cfg.SQLitePath, clock)
		if err != nil {
			_ = runtime.Close()
			return nil, err
		}
		runtime.closers = append(runtime.closers, state)
		deps.State = state
		deps.StatePurger = state
	case config.DriverMemory:
		if deps.State == nil {
			store := memory.NewStore(clock, logger)
			deps.State = store
			deps.StatePurger = store
		}
	}

	switch cfg.QueueDriver {
	case config.DriverMemory:
		runtime.broker = messaging.NewBroker(cfg.Worker.Lease, logger)
		deps.Queue = runtime.broker
		deps.Tasks = runtime.broker
	default:
		queue := postgresadapter.NewTaskQueue(pg.DB, cfg.Worker.Lease, logger)
		deps.Queue = queue
		deps.Tasks = queue
	}

	collaborators, err := buildCollaborators(cfg, logger)
	if err != nil {
		_ = runtime.Close()
		return nil, err
	}
	deps.Collaborators = collaborators

	runtime.module = videopipelineservice.NewModule(deps)
	runtime.module.Broker = runtime.broker
	return runtime, nil
}

func buildCollaborators(cfg config.Config, logger *slog.Logger) (videopipelineservice.Collaborators, error) {
	providers := cfg.Providers
	collaborators := videopipelineservice.Collaborators{
		Prompts: openaiadapter.NewPromptGenerator(openaiadapter.PromptGeneratorConfig{
			APIKey:   providers.OpenRouterAPIKey,
			BaseURL:  providers.OpenRouterBaseURL,
			Model:    providers.PromptModel,
			SiteURL:  providers.SiteURL,
			AppTitle: appTitle,
			Timeout:  providers.RequestTimeout,
		}, logger),
		Images: openaiadapter.NewImageEditor(openaiadapter.ImageEditorConfig{
			APIKey:  providers.OpenAIAPIKey,
			BaseURL: providers.OpenAIBaseURL,
			Timeout: providers.RequestTimeout,
		}, logger),
		Videos: faladapter.NewVideoGenerator(faladapter.Config{
			APIKey:  providers.FalAPIKey,
			BaseURL: providers.FalBaseURL,
			Timeout: providers.RequestTimeout,
		}, logger),
	}

	smtpCfg := mailadapter.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}
	var sender ports.NotificationSender = mailadapter.NewLogSender(logger)
	if smtpCfg.Configured() {
		sender = mailadapter.NewSMTPSender(smtpCfg, logger)
	}
	collaborators.Notifications = sender

	if cfg.Assets.RehostEditedImages {
		rehoster, err := assetsadapter.NewRehoster(assetsadapter.Config{
			Dir:           cfg.Assets.Dir,
			PublicBaseURL: cfg.Assets.PublicBaseURL,
			Timeout:       providers.RequestTimeout,
		}, logger)
		if err != nil {
			return videopipelineservice.Collaborators{}, fmt.Errorf("asset rehoster: %w", err)
		}
		collaborators.Rehoster = rehoster
	}
	return collaborators, nil
}

func retryPolicies(cfg config.RetryConfig) *workers.RetryPolicies {
	policy := func(maxRetries int) retry.Policy {
		return retry.Policy{
			MaxRetries: maxRetries,
			BaseDelay:  cfg.BaseDelay,
			MaxDelay:   cfg.MaxDelay,
			Jitter:     true,
		}
	}
	return &workers.RetryPolicies{
		Prompt:       policy(cfg.PromptRetries),
		ImageEdit:    policy(cfg.ImageEditRetries),
		VideoGen:     policy(cfg.VideoRetries),
		Continuation: policy(cfg.ContinuationRetries),
		Notify:       policy(cfg.NotifyRetries),
	}
}
