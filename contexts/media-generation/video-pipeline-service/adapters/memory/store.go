package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

type stateEntry struct {
	value     []byte
	expiresAt time.Time
}

// Store is an in-memory adapter for runs, prompts and pipeline state, used by
// the local runtime and tests. It is not intended as production persistence.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]entities.PipelineRun
	prompts  []entities.PromptRecord
	state    map[string]stateEntry
	clock    ports.Clock
	sequence uint64
	logger   *slog.Logger
}

// NewStore builds an empty store. clock drives state expiry; nil uses the
// wall clock.
func NewStore(clock ports.Clock, logger *slog.Logger) *Store {
	return &Store{
		runs:   make(map[string]entities.PipelineRun),
		state:  make(map[string]stateEntry),
		clock:  clock,
		logger: application.ResolveLogger(logger),
	}
}

func (s *Store) CreateRun(_ context.Context, run entities.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.RunID]; exists {
		return fmt.Errorf("%w: run %s already exists", domainerrors.ErrRepositoryInvariantBroke, run.RunID)
	}
	s.runs[run.RunID] = cloneRun(run)
	return nil
}

func (s *Store) GetRun(_ context.Context, runID string) (entities.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return entities.PipelineRun{}, domainerrors.ErrRunNotFound
	}
	return cloneRun(run), nil
}

func (s *Store) UpdateRun(
	_ context.Context,
	runID string,
	mutate func(*entities.PipelineRun) error,
) (entities.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.runs[runID]
	if !ok {
		return entities.PipelineRun{}, domainerrors.ErrRunNotFound
	}
	working := cloneRun(current)
	if err := mutate(&working); err != nil {
		return cloneRun(current), err
	}
	s.runs[runID] = working
	return cloneRun(working), nil
}

func (s *Store) FindCanonical(_ context.Context, title string) (entities.PromptRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  entities.PromptRecord
		found bool
	)
	for _, record := range s.prompts {
		if !record.IsCanonicalFor(title) {
			continue
		}
		if !found || !record.CreatedAt.Before(best.CreatedAt) {
			best = record
			found = true
		}
	}
	return best, found, nil
}

func (s *Store) CreatePrompt(_ context.Context, record entities.PromptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.prompts {
		if existing.PromptID == record.PromptID {
			return fmt.Errorf("%w: prompt %s already exists", domainerrors.ErrRepositoryInvariantBroke, record.PromptID)
		}
	}
	s.prompts = append(s.prompts, record)
	return nil
}

func (s *Store) ListPromptsByEmail(_ context.Context, email string, limit int) ([]entities.PromptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	items := make([]entities.PromptRecord, 0)
	for _, record := range s.prompts {
		if strings.ToLower(record.Email) == email {
			items = append(items, record)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty state key", domainerrors.ErrStateStore)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = stateEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.state[key]
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (s *Store) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for key, entry := range s.state {
		if !now.Before(entry.expiresAt) {
			delete(s.state, key)
			purged++
		}
	}
	return purged, nil
}

// DeleteState drops a state key, simulating an eviction.
func (s *Store) DeleteState(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, key)
}

func (s *Store) Prompts() []entities.PromptRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.PromptRecord(nil), s.prompts...)
}

func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("vp-%d", value), nil
}

func (s *Store) now() time.Time {
	if s.clock != nil {
		return s.clock.Now().UTC()
	}
	return time.Now().UTC()
}

func cloneRun(run entities.PipelineRun) entities.PipelineRun {
	if run.NotifiedAt != nil {
		notifiedAt := *run.NotifiedAt
		run.NotifiedAt = &notifiedAt
	}
	return run
}
