package codec_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/aretw0/weft/pkg/codec"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/dsl"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.RegisterCondition("quality_gate", registry.ConditionFunc(func(ctx context.Context, s *domain.State) (string, error) {
		return domain.End, nil
	}))
	reg.RegisterCondition("retry_gate", registry.ConditionFunc(func(ctx context.Context, s *domain.State) (string, error) {
		return domain.End, nil
	}))
	return reg
}

func reviewGraph(t *testing.T) *graph.Definition {
	t.Helper()
	b := dsl.New("review")
	b.Add("extract").Do("extract_code").Go("analyze").Entry()
	b.Add("analyze").Do("check_complexity").Branch("quality_gate")
	b.Add("improve").Do("generate_improvements").Go("analyze").Branch("retry_gate")
	def, err := b.Build()
	require.NoError(t, err)
	return def
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	reg := testRegistry()
	def := reviewGraph(t)

	for _, format := range []codec.Format{codec.FormatJSON, codec.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := codec.Dump(def, reg, format)
			require.NoError(t, err)

			got, warnings, err := codec.Load(data, reg, nil)
			require.NoError(t, err)
			assert.Empty(t, warnings)

			if diff := cmp.Diff(def, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_IsDeterministic(t *testing.T) {
	reg := testRegistry()

	first, err := codec.Dump(reviewGraph(t), reg, codec.FormatJSON)
	require.NoError(t, err)
	second, err := codec.Dump(reviewGraph(t), reg, codec.FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))

	rec, err := codec.Encode(reviewGraph(t), reg)
	require.NoError(t, err)
	assert.Equal(t, []codec.NodeRecord{
		{Name: "analyze", ToolName: "check_complexity"},
		{Name: "extract", ToolName: "extract_code"},
		{Name: "improve", ToolName: "generate_improvements"},
	}, rec.Nodes)
}

func TestEncode_UnregisteredConditionFails(t *testing.T) {
	reg := registry.New()

	_, err := codec.Encode(reviewGraph(t), reg)
	assert.ErrorIs(t, err, domain.ErrUnserializable)
	assert.ErrorContains(t, err, "quality_gate")
}

func TestDecode_DropsExactlyTheUnresolvedEdge(t *testing.T) {
	full := testRegistry()
	rec, err := codec.Encode(reviewGraph(t), full)
	require.NoError(t, err)

	partial := registry.New()
	partial.RegisterCondition("quality_gate", registry.ConditionFunc(func(ctx context.Context, s *domain.State) (string, error) {
		return domain.End, nil
	}))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	got, warnings, err := codec.Decode(rec, partial, logger)
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Equal(t, "improve", warnings[0].FromNode)
	assert.Equal(t, "retry_gate", warnings[0].Condition)
	assert.Contains(t, logs.String(), "Dropping conditional edge")

	want := reviewGraph(t)
	delete(want.ConditionalEdges, "improve")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected definition (-want +got):\n%s", diff)
	}
}

func TestDecode_MalformedRecords(t *testing.T) {
	reg := testRegistry()

	tests := []struct {
		name string
		rec  codec.Record
		want string
	}{
		{
			name: "missing entry point",
			rec:  codec.Record{Name: "g", Nodes: []codec.NodeRecord{{Name: "a", ToolName: "t"}}},
			want: "entry_point is required",
		},
		{
			name: "node without tool",
			rec:  codec.Record{Name: "g", EntryPoint: "a", Nodes: []codec.NodeRecord{{Name: "a"}}},
			want: "nodes[0]",
		},
		{
			name: "duplicate node",
			rec: codec.Record{Name: "g", EntryPoint: "a", Nodes: []codec.NodeRecord{
				{Name: "a", ToolName: "t"}, {Name: "a", ToolName: "u"},
			}},
			want: "duplicate node 'a'",
		},
		{
			name: "edge without destination",
			rec: codec.Record{Name: "g", EntryPoint: "a",
				Nodes: []codec.NodeRecord{{Name: "a", ToolName: "t"}},
				Edges: []codec.EdgeRecord{{FromNode: "a"}}},
			want: "edges[0]",
		},
		{
			name: "reserved step name",
			rec: codec.Record{Name: "g", EntryPoint: "a",
				Nodes: []codec.NodeRecord{{Name: domain.End, ToolName: "t"}}},
			want: "reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := codec.Decode(&tt.rec, reg, nil)
			require.ErrorIs(t, err, codec.ErrMalformed)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestUnmarshal_AcceptsOriginalPayload(t *testing.T) {
	payload := `{
  "name": "demo-review",
  "nodes": [
    {"name": "extract", "tool_name": "extract_code"},
    {"name": "analyze", "tool_name": "check_complexity"}
  ],
  "edges": [{"from_node": "extract", "to_node": "analyze"}],
  "conditional_edges": [{"from_node": "analyze", "condition_function": "quality_gate"}],
  "entry_point": "extract"
}`
	rec, err := codec.Unmarshal([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "demo-review", rec.Name)
	assert.Len(t, rec.Nodes, 2)
	assert.Equal(t, "quality_gate", rec.ConditionalEdges[0].ConditionFunction)

	_, err = codec.Unmarshal([]byte("nodes: [unterminated"))
	assert.ErrorIs(t, err, codec.ErrMalformed)
}

func TestDecodeMap(t *testing.T) {
	rec, err := codec.DecodeMap(map[string]any{
		"name":        "g",
		"entry_point": "a",
		"nodes":       []any{map[string]any{"name": "a", "tool_name": "t"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []codec.NodeRecord{{Name: "a", ToolName: "t"}}, rec.Nodes)

	_, err = codec.DecodeMap(map[string]any{"name": "g", "unknown": true})
	assert.ErrorIs(t, err, codec.ErrMalformed)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, codec.FormatYAML, codec.FormatFromPath("graphs/review.YML"))
	assert.Equal(t, codec.FormatYAML, codec.FormatFromPath("review.yaml"))
	assert.Equal(t, codec.FormatJSON, codec.FormatFromPath("review.json"))

	_, err := codec.Marshal(&codec.Record{}, codec.Format("toml"))
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "toml"))
}
