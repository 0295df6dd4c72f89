package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
)

// RunStore implements ports.RunStore in memory.
// Safe for concurrent use.
type RunStore struct {
	data map[string]*domain.Run
	mu   sync.RWMutex
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.Run),
	}
}

// SaveRun persists a deep copy of the run.
func (s *RunStore) SaveRun(ctx context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.data[run.ID]; ok && cur.Status.IsTerminal() {
		return fmt.Errorf("run %s: %w", run.ID, domain.ErrRunFinalized)
	}
	s.data[run.ID] = run.Clone()
	return nil
}

// LoadRun returns a copy so callers can't mutate stored records by pointer.
func (s *RunStore) LoadRun(ctx context.Context, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.data[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run.Clone(), nil
}

// ListRuns returns stored run ids, sorted.
func (s *RunStore) ListRuns(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// FinalizeRun writes the terminal record once.
func (s *RunStore) FinalizeRun(ctx context.Context, run *domain.Run) error {
	if !run.Status.IsTerminal() {
		return fmt.Errorf("run %s: cannot finalize with status %s", run.ID, run.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[run.ID]
	if !ok {
		return domain.ErrRunNotFound
	}
	if cur.Status.IsTerminal() {
		return fmt.Errorf("run %s: %w", run.ID, domain.ErrRunFinalized)
	}
	s.data[run.ID] = run.Clone()
	return nil
}
