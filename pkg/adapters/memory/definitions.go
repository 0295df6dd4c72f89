package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
)

// DefinitionStore implements ports.DefinitionStore in memory.
// Safe for concurrent use.
type DefinitionStore struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewDefinitionStore creates a new in-memory definition store.
func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{
		data: make(map[string][]byte),
	}
}

// SaveDefinition stores a copy of data under id.
func (s *DefinitionStore) SaveDefinition(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = bytes.Clone(data)
	return nil
}

// LoadDefinition returns a copy of the content stored under id.
func (s *DefinitionStore) LoadDefinition(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[id]
	if !ok {
		return nil, domain.ErrGraphNotFound
	}
	return bytes.Clone(data), nil
}

// ListDefinitions returns stored ids, sorted.
func (s *DefinitionStore) ListDefinitions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteDefinition removes id.
func (s *DefinitionStore) DeleteDefinition(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}
