package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic transaction retries on a contended run key.
const maxTxRetries = 16

// RunStore implements ports.RunStore using Redis.
// Writes go through WATCH/MULTI so a terminal record is never overwritten.
type RunStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewRunStore creates a run store on an existing client.
func NewRunStore(client *backend.Client, opts ...Option) *RunStore {
	c := newConfig(opts)
	return &RunStore{client: client, prefix: c.prefix, ttl: c.ttl}
}

func (s *RunStore) key(id string) string {
	return s.prefix + "run:" + id
}

func (s *RunStore) indexKey() string {
	return s.prefix + "run:index"
}

// SaveRun creates or replaces a run that has not been finalized.
func (s *RunStore) SaveRun(ctx context.Context, run *domain.Run) error {
	return s.write(ctx, run, func(cur *domain.Run) error {
		if cur != nil && cur.Status.IsTerminal() {
			return fmt.Errorf("run %s: %w", run.ID, domain.ErrRunFinalized)
		}
		return nil
	})
}

// FinalizeRun writes the terminal record once.
func (s *RunStore) FinalizeRun(ctx context.Context, run *domain.Run) error {
	if !run.Status.IsTerminal() {
		return fmt.Errorf("run %s: cannot finalize with status %s", run.ID, run.Status)
	}
	return s.write(ctx, run, func(cur *domain.Run) error {
		if cur == nil {
			return domain.ErrRunNotFound
		}
		if cur.Status.IsTerminal() {
			return fmt.Errorf("run %s: %w", run.ID, domain.ErrRunFinalized)
		}
		return nil
	})
}

// write stores run if check accepts the currently stored record (nil when absent).
func (s *RunStore) write(ctx context.Context, run *domain.Run, check func(cur *domain.Run) error) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	key := s.key(run.ID)
	score := float64(farFuture)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).Unix())
	}

	txf := func(tx *backend.Tx) error {
		cur, err := s.get(ctx, tx, key)
		if err != nil && !errors.Is(err, domain.ErrRunNotFound) {
			return err
		}
		if err := check(cur); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: run.ID})
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrRunNotFound) && !errors.Is(err, domain.ErrRunFinalized) {
			return fmt.Errorf("failed to save run to redis: %w", err)
		}
		return err
	}
	return fmt.Errorf("failed to save run %s: too much contention", run.ID)
}

type getter interface {
	Get(ctx context.Context, key string) *backend.StringCmd
}

func (s *RunStore) get(ctx context.Context, c getter, key string) (*domain.Run, error) {
	val, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run from redis: %w", err)
	}

	var run domain.Run
	if err := json.Unmarshal(val, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// LoadRun retrieves a run by id.
func (s *RunStore) LoadRun(ctx context.Context, id string) (*domain.Run, error) {
	return s.get(ctx, s.client, s.key(id))
}

// ListRuns prunes expired index entries and returns the remaining ids, sorted.
func (s *RunStore) ListRuns(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired runs: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
