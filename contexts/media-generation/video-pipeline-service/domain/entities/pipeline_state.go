package entities

import "time"

const statePrefix = "pipeline-state:"

// PipelineState is the cross-process copy of a run's input.
type PipelineState struct {
	RunID     string    `json:"run_id"`
	Input     RunInput  `json:"input"`
	CreatedAt time.Time `json:"created_at"`
}

func StateKey(runID string) string {
	return statePrefix + runID
}
