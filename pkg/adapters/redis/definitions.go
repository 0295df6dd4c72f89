package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/weft/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefinitionStore implements ports.DefinitionStore using Redis.
type DefinitionStore struct {
	client *backend.Client
	prefix string
}

// NewDefinitionStore creates a definition store on an existing client.
func NewDefinitionStore(client *backend.Client, opts ...Option) *DefinitionStore {
	c := newConfig(opts)
	return &DefinitionStore{client: client, prefix: c.prefix}
}

func (s *DefinitionStore) key(id string) string {
	return s.prefix + "graph:" + id
}

func (s *DefinitionStore) indexKey() string {
	return s.prefix + "graph:index"
}

// SaveDefinition stores data and indexes id.
func (s *DefinitionStore) SaveDefinition(ctx context.Context, id string, data []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(id), data, 0)
	// Equal scores keep the index in lexicographic order.
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: 0, Member: id})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save definition to redis: %w", err)
	}
	return nil
}

// LoadDefinition retrieves the content stored under id.
func (s *DefinitionStore) LoadDefinition(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrGraphNotFound
		}
		return nil, fmt.Errorf("failed to get definition from redis: %w", err)
	}
	return data, nil
}

// ListDefinitions returns indexed ids in lexicographic order.
func (s *DefinitionStore) ListDefinitions(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	return ids, nil
}

// DeleteDefinition removes id and its index entry.
func (s *DefinitionStore) DeleteDefinition(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)

	_, err := pipe.Exec(ctx)
	return err
}
