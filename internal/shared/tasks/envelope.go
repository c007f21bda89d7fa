package tasks

import (
	"encoding/json"
	"time"
)

// Envelope is one queued unit of pipeline work. Queue implementations persist
// it as-is; Payload is owned by the handler registered under Name.
type Envelope struct {
	TaskID       string          `json:"task_id"`
	Name         string          `json:"name"`
	RunID        string          `json:"run_id"`
	Attempt      int             `json:"attempt"`
	Continuation string          `json:"continuation,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	NotBefore    time.Time       `json:"not_before"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
}

// Due reports whether the task may be claimed at now.
func (e Envelope) Due(now time.Time) bool {
	return !e.NotBefore.After(now)
}

// Retry returns the copy scheduled for the next attempt.
func (e Envelope) Retry(taskID string, now time.Time, delay time.Duration) Envelope {
	next := e
	next.TaskID = taskID
	next.Attempt = e.Attempt + 1
	next.Payload = append(json.RawMessage(nil), e.Payload...)
	next.EnqueuedAt = now.UTC()
	next.NotBefore = now.UTC().Add(delay)
	return next
}
