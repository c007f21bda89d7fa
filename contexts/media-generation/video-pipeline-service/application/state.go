package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

const DefaultStateTTL = time.Hour

func SaveState(ctx context.Context, store ports.StateStore, state entities.PipelineState, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: encode state: %w", domainerrors.ErrStateStore, err)
	}
	if err := store.Put(ctx, entities.StateKey(state.RunID), payload, ttl); err != nil {
		return fmt.Errorf("%w: %w", domainerrors.ErrStateStore, err)
	}
	return nil
}

// LoadState returns ErrStateMissing when the key is absent, expired or
// unreadable. Store outages are returned unwrapped so callers can retry them.
func LoadState(ctx context.Context, store ports.StateStore, runID string) (entities.PipelineState, error) {
	payload, found, err := store.Get(ctx, entities.StateKey(runID))
	if err != nil {
		return entities.PipelineState{}, err
	}
	if !found {
		return entities.PipelineState{}, fmt.Errorf("%w: run %s", domainerrors.ErrStateMissing, runID)
	}
	var state entities.PipelineState
	if err := json.Unmarshal(payload, &state); err != nil {
		return entities.PipelineState{}, fmt.Errorf("%w: decode run %s: %w", domainerrors.ErrStateMissing, runID, err)
	}
	if state.RunID != runID {
		return entities.PipelineState{}, fmt.Errorf("%w: key holds run %q", domainerrors.ErrStateMissing, state.RunID)
	}
	return state, nil
}
