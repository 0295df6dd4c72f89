package ports

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDefinitionStoreContract runs a suite of tests verifying that a DefinitionStore
// implementation adheres to the interface contract.
func RunDefinitionStoreContract(t *testing.T, store DefinitionStore) {
	ctx := context.Background()
	prefix := "contract-graph-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		id := prefix + "-a"
		data := []byte(`{"name":"a","entry_point":"x"}`)

		require.NoError(t, store.SaveDefinition(ctx, id, data))

		loaded, err := store.LoadDefinition(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, string(data), string(loaded))
	})

	t.Run("Overwrite", func(t *testing.T) {
		id := prefix + "-b"
		require.NoError(t, store.SaveDefinition(ctx, id, []byte("v1")))
		require.NoError(t, store.SaveDefinition(ctx, id, []byte("v2")))

		loaded, err := store.LoadDefinition(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(loaded))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadDefinition(ctx, prefix+"-missing")
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.ListDefinitions(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, prefix+"-a")
		assert.Contains(t, ids, prefix+"-b")
		assert.IsNonDecreasing(t, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		id := prefix + "-a"
		require.NoError(t, store.DeleteDefinition(ctx, id))

		_, err := store.LoadDefinition(ctx, id)
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)

		assert.NoError(t, store.DeleteDefinition(ctx, id), "deleting twice is not an error")
	})
}

// RunRunStoreContract runs a suite of tests verifying that a RunStore implementation
// adheres to the interface contract, including the finalize-once guarantee.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	prefix := "contract-run-" + time.Now().Format("20060102150405")

	newRun := func(id string) *domain.Run {
		state := domain.NewState("input")
		state.Status = domain.StatusSubmitted
		state.Log("Run initialized, waiting for execution...")
		return &domain.Run{
			ID:        id,
			GraphID:   "graph-1",
			State:     state,
			Status:    domain.StatusSubmitted,
			StartedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		run := newRun(prefix + "-1")
		run.State.Data.Set("score", domain.Int(15))
		require.NoError(t, store.SaveRun(ctx, run))

		loaded, err := store.LoadRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.GraphID, loaded.GraphID)
		assert.Equal(t, domain.StatusSubmitted, loaded.Status)
		assert.Equal(t, run.State.Logs, loaded.State.Logs)
		assert.True(t, run.StartedAt.Equal(loaded.StartedAt))

		score, ok := loaded.State.Data.Number("score")
		assert.True(t, ok)
		assert.Equal(t, 15.0, score)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadRun(ctx, prefix+"-missing")
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Stored copy is isolated", func(t *testing.T) {
		run := newRun(prefix + "-2")
		require.NoError(t, store.SaveRun(ctx, run))

		run.State.Log("mutated after save")

		loaded, err := store.LoadRun(ctx, run.ID)
		require.NoError(t, err)
		assert.NotContains(t, loaded.State.Logs, "mutated after save")
	})

	t.Run("Finalize once", func(t *testing.T) {
		run := newRun(prefix + "-3")
		require.NoError(t, store.SaveRun(ctx, run))

		done := run.Clone()
		done.Status = domain.StatusCompleted
		done.State.Status = domain.StatusCompleted
		finished := time.Now().UTC()
		done.FinishedAt = &finished
		require.NoError(t, store.FinalizeRun(ctx, done))

		again := run.Clone()
		again.Status = domain.StatusFailed
		err := store.FinalizeRun(ctx, again)
		assert.ErrorIs(t, err, domain.ErrRunFinalized)

		loaded, err := store.LoadRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, loaded.Status)
		require.NotNil(t, loaded.FinishedAt)
	})

	t.Run("Finalize unknown run", func(t *testing.T) {
		run := newRun(prefix + "-ghost")
		run.Status = domain.StatusFailed
		assert.ErrorIs(t, store.FinalizeRun(ctx, run), domain.ErrRunNotFound)
	})

	t.Run("Concurrent finalize has one winner", func(t *testing.T) {
		run := newRun(prefix + "-4")
		require.NoError(t, store.SaveRun(ctx, run))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r := run.Clone()
				r.Status = domain.StatusCompleted
				if i%2 == 1 {
					r.Status = domain.StatusFailed
				}
				r.Error = fmt.Sprintf("writer %d", i)
				if store.FinalizeRun(ctx, r) == nil {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.ListRuns(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, prefix+"-1")
		assert.Contains(t, ids, prefix+"-4")
		assert.IsNonDecreasing(t, ids)
	})
}
