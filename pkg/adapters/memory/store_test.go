package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDefinitionStore_Contract(t *testing.T) {
	ports.RunDefinitionStoreContract(t, memory.NewDefinitionStore())
}

func TestMemoryRunStore_Contract(t *testing.T) {
	ports.RunRunStoreContract(t, memory.NewRunStore())
}

func TestMemoryRunStore_FinalizeRequiresTerminalStatus(t *testing.T) {
	store := memory.NewRunStore()
	ctx := context.Background()

	run := &domain.Run{ID: "r1", Status: domain.StatusSubmitted, State: domain.NewState(nil)}
	require.NoError(t, store.SaveRun(ctx, run))

	run.Status = domain.StatusRunning
	assert.Error(t, store.FinalizeRun(ctx, run))
	assert.NotErrorIs(t, store.FinalizeRun(ctx, run), domain.ErrRunFinalized)
}

func TestMemoryRunStore_SaveAfterFinalizeIsRejected(t *testing.T) {
	store := memory.NewRunStore()
	ctx := context.Background()

	run := &domain.Run{ID: "r1", Status: domain.StatusRunning, State: domain.NewState(nil)}
	require.NoError(t, store.SaveRun(ctx, run))

	run.Status = domain.StatusFailed
	require.NoError(t, store.FinalizeRun(ctx, run))

	run.Status = domain.StatusRunning
	assert.ErrorIs(t, store.SaveRun(ctx, run), domain.ErrRunFinalized)
}

func TestMemoryLocker(t *testing.T) {
	locker := memory.NewLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "run-1", time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, "run-1", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := locker.Lock(ctx, "run-2", time.Second)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	acquired := make(chan struct{})
	go func() {
		u, err := locker.Lock(ctx, "run-1", time.Second)
		if err == nil {
			_ = u(ctx)
		}
		close(acquired)
	}()

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx), "unlocking twice is harmless")

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}
