package validator

import (
	"context"
	"testing"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/dsl"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.RegisterTool("t", registry.ToolFunc(func(ctx context.Context, s *domain.State) (*domain.State, error) { return s, nil }))
	reg.RegisterCondition("c", registry.ConditionFunc(func(ctx context.Context, s *domain.State) (string, error) { return domain.End, nil }))
	return reg
}

func TestValidateGraph(t *testing.T) {
	reg := testRegistry()

	t.Run("valid", func(t *testing.T) {
		b := dsl.New("ok")
		b.Add("start").Do("t").Go("a").Entry()
		b.Add("a").Do("t").Branch("c")
		assert.NoError(t, ValidateGraph(b.MustBuild(), reg))
	})

	t.Run("broken link", func(t *testing.T) {
		b := dsl.New("broken")
		b.Add("start").Do("t").Go("ghost_node").Entry()
		err := ValidateGraph(b.MustBuild(), reg)
		require.ErrorIs(t, err, ErrInvalidGraph)
		assert.ErrorContains(t, err, "start -> ghost_node")
	})

	t.Run("unregistered names", func(t *testing.T) {
		b := dsl.New("names")
		b.Add("start").Do("missing_tool").Branch("missing_cond").Entry()
		err := ValidateGraph(b.MustBuild(), reg)
		assert.ErrorContains(t, err, "unregistered tool 'missing_tool'")
		assert.ErrorContains(t, err, "unregistered condition 'missing_cond'")
	})
}

func TestUnreachableSteps(t *testing.T) {
	b := dsl.New("islands")
	b.Add("start").Do("t").Go("a").Entry()
	b.Add("a").Do("t").Go(domain.End)
	b.Add("island").Do("t")

	assert.Equal(t, []string{"island"}, UnreachableSteps(b.MustBuild()))

	b.Add("a").Branch("c")
	assert.Empty(t, UnreachableSteps(b.MustBuild()), "conditional routing may reach anything")
}
