package messaging

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"turntable/internal/shared/tasks"
)

const DefaultLease = 15 * time.Minute

type brokerEntry struct {
	task       tasks.Envelope
	seq        uint64
	claimedBy  string
	leaseUntil time.Time
}

// Broker is the in-process task queue used by the local runtime and tests.
// Claimed tasks stay invisible until acked or until their lease runs out.
// Acked ids are remembered so a finished task is never enqueued again.
type Broker struct {
	mu      sync.Mutex
	entries map[string]*brokerEntry
	acked   map[string]struct{}
	seq     uint64
	lease   time.Duration
	logger  *slog.Logger
}

func NewBroker(lease time.Duration, logger *slog.Logger) *Broker {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Broker{
		entries: make(map[string]*brokerEntry),
		acked:   make(map[string]struct{}),
		lease:   lease,
		logger:  logger,
	}
}

// Enqueue stores task. Re-enqueueing a pending or acked task id is a no-op.
func (b *Broker) Enqueue(ctx context.Context, task tasks.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(task.TaskID) == "" {
		return ErrTaskIDRequired
	}

	b.mu.Lock()
	if _, exists := b.entries[task.TaskID]; exists {
		b.mu.Unlock()
		return nil
	}
	if _, done := b.acked[task.TaskID]; done {
		b.mu.Unlock()
		return nil
	}
	b.seq++
	b.entries[task.TaskID] = &brokerEntry{task: task, seq: b.seq}
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Debug("task enqueued",
			"event", "task_broker_enqueue",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"task_id", task.TaskID,
			"task_name", task.Name,
			"run_id", task.RunID,
			"attempt", task.Attempt,
		)
	}
	return nil
}

func (b *Broker) ClaimDue(ctx context.Context, workerID string, now time.Time, limit int) ([]tasks.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	due := make([]*brokerEntry, 0)
	for _, entry := range b.entries {
		if !entry.task.Due(now) {
			continue
		}
		if entry.claimedBy != "" && now.Before(entry.leaseUntil) {
			continue
		}
		due = append(due, entry)
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].task.NotBefore.Equal(due[j].task.NotBefore) {
			return due[i].task.NotBefore.Before(due[j].task.NotBefore)
		}
		return due[i].seq < due[j].seq
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]tasks.Envelope, 0, len(due))
	for _, entry := range due {
		if entry.claimedBy != "" && b.logger != nil {
			b.logger.Warn("task lease expired, redelivering",
				"event", "task_broker_lease_expired",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"task_id", entry.task.TaskID,
				"previous_worker", entry.claimedBy,
			)
		}
		entry.claimedBy = workerID
		entry.leaseUntil = now.Add(b.lease)
		claimed = append(claimed, entry.task)
	}
	return claimed, nil
}

// Ack removes a task. Unknown ids are ignored since a lease may have been
// handed to another worker that acked first.
func (b *Broker) Ack(ctx context.Context, taskID string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.entries, taskID)
	b.acked[taskID] = struct{}{}
	b.mu.Unlock()
	return nil
}

// Pending counts tasks not yet acked, claimed or not.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Snapshot returns the unacked tasks in claim order.
func (b *Broker) Snapshot() []tasks.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := make([]*brokerEntry, 0, len(b.entries))
	for _, entry := range b.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]tasks.Envelope, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.task)
	}
	return out
}
