package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
)

// RunStore implements ports.RunStore using one JSON file per run.
// The finalize-once guarantee holds within a single process.
type RunStore struct {
	BasePath string
	mu       sync.Mutex
}

// NewRunStore creates a store rooted at basePath (default ".weft/runs").
func NewRunStore(basePath string) *RunStore {
	if basePath == "" {
		basePath = filepath.Join(".weft", "runs")
	}
	return &RunStore{BasePath: basePath}
}

func (s *RunStore) path(id string) string {
	return filepath.Join(s.BasePath, id+".json")
}

// SaveRun writes a run that has not been finalized.
func (s *RunStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if err := checkID(run.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.read(run.ID)
	if err != nil && !errors.Is(err, domain.ErrRunNotFound) {
		return err
	}
	if cur != nil && cur.Status.IsTerminal() {
		return fmt.Errorf("run %s: %w", run.ID, domain.ErrRunFinalized)
	}
	return s.write(run)
}

// FinalizeRun writes the terminal record once.
func (s *RunStore) FinalizeRun(ctx context.Context, run *domain.Run) error {
	if err := checkID(run.ID); err != nil {
		return err
	}
	if !run.Status.IsTerminal() {
		return fmt.Errorf("run %s: cannot finalize with status %s", run.ID, run.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.read(run.ID)
	if err != nil {
		return err
	}
	if cur.Status.IsTerminal() {
		return fmt.Errorf("run %s: %w", run.ID, domain.ErrRunFinalized)
	}
	return s.write(run)
}

// LoadRun reads the run file for id.
func (s *RunStore) LoadRun(ctx context.Context, id string) (*domain.Run, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.read(id)
}

// ListRuns returns the ids of stored runs, sorted.
func (s *RunStore) ListRuns(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list runs directory: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "tmp-") || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RunStore) read(id string) (*domain.Run, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

func (s *RunStore) write(run *domain.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := writeAtomic(s.path(run.ID), data); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}
