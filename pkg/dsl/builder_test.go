package dsl

import (
	"testing"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_CodeReviewShape(t *testing.T) {
	b := New("code-review")

	b.Add("extract").Do("extract_code").Go("analyze").Entry()
	b.Add("analyze").Do("check_complexity").Branch("quality_gate")
	b.Add("improve").Do("generate_improvements").Go("analyze")

	def, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "code-review", def.Name)
	assert.Equal(t, "extract", def.EntryPoint)
	assert.Equal(t, []string{"analyze", "extract", "improve"}, def.StepNames())

	dst, ok := def.Edge("improve")
	assert.True(t, ok)
	assert.Equal(t, "analyze", dst)

	cond, ok := def.ConditionalEdge("analyze")
	assert.True(t, ok)
	assert.Equal(t, "quality_gate", cond)

	_, ok = def.Edge("analyze")
	assert.False(t, ok, "analyze only has a conditional edge")
}

func TestBuilder_AddReturnsExisting(t *testing.T) {
	b := New("g")
	b.Add("a").Do("t1")
	b.Add("a").Go("b")
	b.Add("b").Do("t2").Terminal()

	def, err := b.Entry("a").Build()
	require.NoError(t, err)

	step, _ := def.Step("a")
	assert.Equal(t, "t1", step.ToolName)
	dst, _ := def.Edge("a")
	assert.Equal(t, "b", dst)
	_, ok := def.Edge("b")
	assert.False(t, ok)
}

func TestBuilder_RejectsReservedName(t *testing.T) {
	b := New("g")
	b.Add(domain.End).Do("t")

	_, err := b.Build()
	assert.ErrorIs(t, err, domain.ErrReservedName)
}

func TestBuilder_MissingToolFails(t *testing.T) {
	b := New("g")
	b.Add("a")

	_, err := b.Build()
	assert.Error(t, err)
	assert.Panics(t, func() { b.MustBuild() })
}
