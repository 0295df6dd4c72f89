package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

var definitionExts = []string{".json", ".yaml", ".yml"}

// DefinitionStore implements ports.DefinitionStore over a directory of files,
// one file per graph named <id>.json, <id>.yaml or <id>.yml.
type DefinitionStore struct {
	BasePath string
	// Ext is the extension used for new files.
	Ext string
}

// NewDefinitionStore creates a store rooted at basePath (default ".weft/graphs").
// ext selects the extension of saved files (default ".json").
func NewDefinitionStore(basePath, ext string) *DefinitionStore {
	if basePath == "" {
		basePath = filepath.Join(".weft", "graphs")
	}
	if ext == "" {
		ext = ".json"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &DefinitionStore{BasePath: basePath, Ext: ext}
}

// SaveDefinition writes data atomically, replacing files of the same id in other formats.
func (s *DefinitionStore) SaveDefinition(ctx context.Context, id string, data []byte) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(s.BasePath, id+s.Ext), data); err != nil {
		return fmt.Errorf("failed to save definition %s: %w", id, err)
	}
	for _, ext := range definitionExts {
		if ext != s.Ext {
			_ = os.Remove(filepath.Join(s.BasePath, id+ext))
		}
	}
	return nil
}

// LoadDefinition reads the file for id in any supported format.
func (s *DefinitionStore) LoadDefinition(ctx context.Context, id string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	path, err := s.find(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	return data, nil
}

// Path returns the file backing id.
func (s *DefinitionStore) Path(id string) (string, error) {
	return s.find(id)
}

func (s *DefinitionStore) find(id string) (string, error) {
	for _, ext := range append([]string{s.Ext}, definitionExts...) {
		path := filepath.Join(s.BasePath, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", domain.ErrGraphNotFound
}

// ListDefinitions returns the ids of supported files in the directory, sorted.
func (s *DefinitionStore) ListDefinitions(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list definitions directory: %w", err)
	}

	seen := make(map[string]struct{})
	ids := []string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "tmp-") {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !supported(ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ext)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteDefinition removes every file for id.
func (s *DefinitionStore) DeleteDefinition(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	for _, ext := range definitionExts {
		if err := os.Remove(filepath.Join(s.BasePath, id+ext)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete definition %s: %w", id, err)
		}
	}
	return nil
}

func supported(ext string) bool {
	for _, e := range definitionExts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
