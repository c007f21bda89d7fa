package workers

import (
	"context"
	"log/slog"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

// StateExpirer sweeps pipeline state rows that crossed expires_at.
type StateExpirer struct {
	State  ports.ExpiredStatePurger
	Clock  ports.Clock
	Logger *slog.Logger
}

func (e StateExpirer) RunOnce(ctx context.Context) error {
	if e.State == nil {
		return nil
	}
	logger := application.ResolveLogger(e.Logger)

	purged, err := e.State.PurgeExpired(ctx, application.Now(e.Clock))
	if err != nil {
		logger.Error("pipeline state expiry sweep failed",
			"event", "pipeline_state_expiry_failed",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if purged > 0 {
		logger.Info("pipeline state expiry sweep completed",
			"event", "pipeline_state_expiry_completed",
			"module", "media-generation/video-pipeline-service",
			"layer", "worker",
			"purged_count", purged,
		)
	}
	return nil
}
