package registry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolveTool(t *testing.T) {
	reg := registry.New()
	reg.RegisterTool("mark", registry.ToolFunc(func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Data.Set("marked", domain.Bool(true))
		return s, nil
	}))

	tool, err := reg.ResolveTool("mark")
	require.NoError(t, err)

	state := domain.NewState(nil)
	_, err = tool.Invoke(context.Background(), state)
	require.NoError(t, err)

	marked, _ := state.Data.Bool("marked")
	assert.True(t, marked)
}

func TestRegistry_NotFound(t *testing.T) {
	reg := registry.New()

	_, err := reg.ResolveTool("missing")
	assert.ErrorIs(t, err, domain.ErrToolNotFound)

	_, err = reg.ResolveCondition("missing")
	assert.ErrorIs(t, err, domain.ErrConditionNotFound)

	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Name)
}

func TestRegistry_NamespacesAreIndependent(t *testing.T) {
	reg := registry.New()
	reg.RegisterCondition("gate", registry.ConditionFunc(func(ctx context.Context, s *domain.State) (string, error) {
		return domain.End, nil
	}))

	assert.True(t, reg.HasCondition("gate"))
	assert.False(t, reg.HasTool("gate"))
}

func TestRegistry_LastWriteWins(t *testing.T) {
	reg := registry.New()
	reg.RegisterCondition("gate", registry.ConditionFunc(func(ctx context.Context, s *domain.State) (string, error) {
		return "first", nil
	}))
	reg.RegisterCondition("gate", registry.ConditionFunc(func(ctx context.Context, s *domain.State) (string, error) {
		return "second", nil
	}))

	cond, err := reg.ResolveCondition("gate")
	require.NoError(t, err)

	next, err := cond.Route(context.Background(), domain.NewState(nil))
	require.NoError(t, err)
	assert.Equal(t, "second", next)
	assert.Equal(t, []string{"gate"}, reg.Conditions())
}

func TestRegistry_ListingIsSorted(t *testing.T) {
	reg := registry.New()
	noop := registry.ToolFunc(func(ctx context.Context, s *domain.State) (*domain.State, error) { return s, nil })
	reg.RegisterTool("zeta", noop)
	reg.RegisterTool("alpha", noop)
	reg.RegisterTool("mid", noop)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Tools())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := registry.New()
	noop := registry.ToolFunc(func(ctx context.Context, s *domain.State) (*domain.State, error) { return s, nil })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.RegisterTool("t", noop)
		}()
		go func() {
			defer wg.Done()
			_ = reg.HasTool("t")
			_, _ = reg.ResolveTool("t")
		}()
	}
	wg.Wait()

	assert.True(t, reg.HasTool("t"))
}
