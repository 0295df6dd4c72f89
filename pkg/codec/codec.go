package codec

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/registry"
)

// ErrMalformed is returned when a record cannot describe a graph at all.
var ErrMalformed = errors.New("malformed definition record")

// Encode converts def into a record. Output is sorted so equal definitions
// always produce equal records.
func Encode(def *graph.Definition, reg *registry.Registry) (*Record, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrMalformed)
	}
	if reg == nil {
		reg = registry.Default()
	}

	rec := &Record{
		Name:             def.Name,
		Nodes:            make([]NodeRecord, 0, len(def.Steps)),
		Edges:            make([]EdgeRecord, 0, len(def.Edges)),
		ConditionalEdges: make([]ConditionalEdgeRecord, 0, len(def.ConditionalEdges)),
		EntryPoint:       def.EntryPoint,
	}

	for _, name := range def.StepNames() {
		rec.Nodes = append(rec.Nodes, NodeRecord{Name: name, ToolName: def.Steps[name].ToolName})
	}

	for _, src := range sortedKeys(def.Edges) {
		rec.Edges = append(rec.Edges, EdgeRecord{FromNode: src, ToNode: def.Edges[src]})
	}

	for _, src := range sortedKeys(def.ConditionalEdges) {
		cond := def.ConditionalEdges[src]
		if !reg.HasCondition(cond) {
			return nil, fmt.Errorf("%w: conditional edge from '%s' uses unregistered condition '%s'",
				domain.ErrUnserializable, src, cond)
		}
		rec.ConditionalEdges = append(rec.ConditionalEdges, ConditionalEdgeRecord{FromNode: src, ConditionFunction: cond})
	}

	return rec, nil
}

// Decode rebuilds a definition from rec. Conditional edges whose condition is not
// registered are dropped and reported as warnings; every other problem fails the decode.
func Decode(rec *Record, reg *registry.Registry, logger *slog.Logger) (*graph.Definition, []Warning, error) {
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: nil record", ErrMalformed)
	}
	if reg == nil {
		reg = registry.Default()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := checkRecord(rec); err != nil {
		return nil, nil, err
	}

	def := graph.New(rec.Name)
	for _, n := range rec.Nodes {
		if err := def.AddStep(n.Name, n.ToolName); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	for _, e := range rec.Edges {
		def.AddEdge(e.FromNode, e.ToNode)
	}

	var warnings []Warning
	for _, ce := range rec.ConditionalEdges {
		if !reg.HasCondition(ce.ConditionFunction) {
			w := Warning{
				FromNode:  ce.FromNode,
				Condition: ce.ConditionFunction,
				Reason:    "condition not registered",
			}
			logger.Warn("Dropping conditional edge",
				"graph", rec.Name,
				"from_node", ce.FromNode,
				"condition", ce.ConditionFunction,
				"reason", w.Reason)
			warnings = append(warnings, w)
			continue
		}
		def.AddConditionalEdge(ce.FromNode, ce.ConditionFunction)
	}

	def.SetEntryPoint(rec.EntryPoint)
	return def, warnings, nil
}

func checkRecord(rec *Record) error {
	var errs []error

	if rec.EntryPoint == "" {
		errs = append(errs, fmt.Errorf("%w: entry_point is required", ErrMalformed))
	}

	seen := make(map[string]struct{}, len(rec.Nodes))
	for i, n := range rec.Nodes {
		if n.Name == "" || n.ToolName == "" {
			errs = append(errs, fmt.Errorf("%w: nodes[%d] requires name and tool_name", ErrMalformed, i))
			continue
		}
		if _, dup := seen[n.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate node '%s'", ErrMalformed, n.Name))
		}
		seen[n.Name] = struct{}{}
	}

	for i, e := range rec.Edges {
		if e.FromNode == "" || e.ToNode == "" {
			errs = append(errs, fmt.Errorf("%w: edges[%d] requires from_node and to_node", ErrMalformed, i))
		}
	}

	for i, ce := range rec.ConditionalEdges {
		if ce.FromNode == "" || ce.ConditionFunction == "" {
			errs = append(errs, fmt.Errorf("%w: conditional_edges[%d] requires from_node and condition_function", ErrMalformed, i))
		}
	}

	return errors.Join(errs...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
