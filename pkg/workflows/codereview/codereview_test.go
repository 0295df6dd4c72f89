package codereview_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/aretw0/weft/pkg/workflows/codereview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *weft.Engine {
	t.Helper()
	reg := registry.New()
	codereview.Register(reg)
	return weft.New(weft.WithRegistry(reg))
}

func TestReview_LoopsUntilGatePasses(t *testing.T) {
	eng := newEngine(t)

	code := "def foo(x):\n  for i in x:\n    if i:\n      while True: pass\ndef bar(): pass"
	state, err := eng.Run(context.Background(), codereview.Definition(), code)
	require.NoError(t, err)

	var visited []string
	for _, l := range state.Logs {
		if name, ok := strings.CutPrefix(l, "Executing step: "); ok {
			visited = append(visited, name)
		}
	}
	assert.Equal(t, []string{"extract", "analyze", "improve", "analyze", "improve", "analyze"}, visited)

	assert.Contains(t, state.Logs, "Calculated complexity score: 15 (Round 0)")
	assert.Contains(t, state.Logs, "Calculated complexity score: 10 (Round 1)")
	assert.Contains(t, state.Logs, "Calculated complexity score: 5 (Round 2)")

	score, _ := state.Data.Number(codereview.KeyComplexityScore)
	assert.Equal(t, 5.0, score)

	fns, ok := state.Data[codereview.KeyFunctions].AsList()
	require.True(t, ok)
	assert.Equal(t, []domain.Value{domain.String("foo"), domain.String("bar")}, fns)
	assert.Equal(t, domain.StatusCompleted, state.Status)
}

func TestReview_SimpleCodeEndsImmediately(t *testing.T) {
	eng := newEngine(t)

	state, err := eng.Run(context.Background(), codereview.Definition(), map[string]any{"code": "def main(): pass"})
	require.NoError(t, err)
	assert.Equal(t, "Workflow reached END.", state.LastLog())
	assert.NotContains(t, state.Logs, "Executing step: improve")
}

func TestReview_RejectsNonStringInput(t *testing.T) {
	eng := newEngine(t)

	state, err := eng.Run(context.Background(), codereview.Definition(), 42)
	assert.ErrorIs(t, err, domain.ErrToolExecution)
	assert.Contains(t, state.LastLog(), "input must be a string")
}

func TestQualityGate_DefaultsToImprove(t *testing.T) {
	next, err := codereview.QualityGate(context.Background(), domain.NewState(nil))
	require.NoError(t, err)
	assert.Equal(t, "improve", next)
}

func TestDefinition_IsSerializable(t *testing.T) {
	eng := newEngine(t)

	data, err := eng.Dump(codereview.Definition(), "yaml")
	require.NoError(t, err)

	def, warnings, err := eng.Load(data)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, codereview.Definition(), def)
}
