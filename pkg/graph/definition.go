package graph

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// Definition is the structural model of a graph: steps, static edges,
// conditional edges and the entry point.
//
// A Definition is built once and treated as read-only afterwards. Running it never
// mutates it, so many runs may share one Definition concurrently.
type Definition struct {
	Name string

	// Steps maps step names to their definitions.
	Steps map[string]domain.Step

	// Edges maps a source step to its static destination.
	Edges map[string]string

	// ConditionalEdges maps a source step to the registered name of the condition
	// that picks its destination at runtime. Takes priority over Edges.
	ConditionalEdges map[string]string

	EntryPoint string
}

// New creates an empty definition.
func New(name string) *Definition {
	return &Definition{
		Name:             name,
		Steps:            make(map[string]domain.Step),
		Edges:            make(map[string]string),
		ConditionalEdges: make(map[string]string),
	}
}

// AddStep adds a step bound to the named tool.
// Re-adding a name replaces the previous step.
func (d *Definition) AddStep(name, toolName string) error {
	if name == "" {
		return fmt.Errorf("step name cannot be empty")
	}
	if name == domain.End {
		return fmt.Errorf("%w: %q cannot be used as a step name", domain.ErrReservedName, domain.End)
	}
	if toolName == "" {
		return fmt.Errorf("step %s: tool name cannot be empty", name)
	}
	d.Steps[name] = domain.Step{Name: name, ToolName: toolName}
	return nil
}

// AddEdge adds a static edge. A later edge from the same source overwrites the earlier one.
func (d *Definition) AddEdge(source, destination string) {
	d.Edges[source] = destination
}

// AddConditionalEdge routes source through the named condition.
// A later conditional edge from the same source overwrites the earlier one.
func (d *Definition) AddConditionalEdge(source, condition string) {
	d.ConditionalEdges[source] = condition
}

// SetEntryPoint sets the step execution begins at.
// Existence is checked lazily, when a run reaches it.
func (d *Definition) SetEntryPoint(name string) {
	d.EntryPoint = name
}

// Step returns the step registered under name.
func (d *Definition) Step(name string) (domain.Step, bool) {
	s, ok := d.Steps[name]
	return s, ok
}

// Edge returns the static destination for source.
func (d *Definition) Edge(source string) (string, bool) {
	dst, ok := d.Edges[source]
	return dst, ok
}

// ConditionalEdge returns the condition name routing source.
func (d *Definition) ConditionalEdge(source string) (string, bool) {
	cond, ok := d.ConditionalEdges[source]
	return cond, ok
}

// StepNames returns the step names, sorted.
func (d *Definition) StepNames() []string {
	names := make([]string, 0, len(d.Steps))
	for name := range d.Steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of d.
func (d *Definition) Clone() *Definition {
	return &Definition{
		Name:             d.Name,
		Steps:            maps.Clone(d.Steps),
		Edges:            maps.Clone(d.Edges),
		ConditionalEdges: maps.Clone(d.ConditionalEdges),
		EntryPoint:       d.EntryPoint,
	}
}

// Validate reports structural problems a run would hit: a missing or unknown entry
// point and static edges leading to unknown steps. Conditional destinations are only
// known at runtime and are not checked.
func (d *Definition) Validate() error {
	var errs []string

	switch {
	case d.EntryPoint == "":
		errs = append(errs, "entry point not set")
	case d.EntryPoint == domain.End:
		errs = append(errs, "entry point cannot be END")
	default:
		if _, ok := d.Steps[d.EntryPoint]; !ok {
			errs = append(errs, fmt.Sprintf("entry point '%s' is not a step", d.EntryPoint))
		}
	}

	sources := make([]string, 0, len(d.Edges))
	for src := range d.Edges {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		dst := d.Edges[src]
		if _, ok := d.Steps[src]; !ok {
			errs = append(errs, fmt.Sprintf("edge source '%s' is not a step", src))
		}
		if dst == domain.End {
			continue
		}
		if _, ok := d.Steps[dst]; !ok {
			errs = append(errs, fmt.Sprintf("edge %s -> %s points to an unknown step", src, dst))
		}
	}

	for _, src := range sortedKeys(d.ConditionalEdges) {
		if _, ok := d.Steps[src]; !ok {
			errs = append(errs, fmt.Sprintf("conditional edge source '%s' is not a step", src))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
