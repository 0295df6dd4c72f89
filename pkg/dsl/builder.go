package dsl

import (
	"fmt"

	"github.com/aretw0/weft/pkg/graph"
)

// Builder manages the graph construction.
type Builder struct {
	name  string
	entry string
	order []string
	steps map[string]*StepBuilder
}

// New creates a new graph builder.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		steps: make(map[string]*StepBuilder),
	}
}

// Add creates a new step in the graph.
// If the step already exists, it returns the existing builder.
func (b *Builder) Add(name string) *StepBuilder {
	if sb, ok := b.steps[name]; ok {
		return sb
	}
	sb := &StepBuilder{name: name, builder: b}
	b.steps[name] = sb
	b.order = append(b.order, name)
	return sb
}

// Entry sets the step execution begins at.
func (b *Builder) Entry(name string) *Builder {
	b.entry = name
	return b
}

// Build compiles the builder into a graph definition.
func (b *Builder) Build() (*graph.Definition, error) {
	def := graph.New(b.name)
	for _, name := range b.order {
		sb := b.steps[name]
		if err := def.AddStep(sb.name, sb.tool); err != nil {
			return nil, fmt.Errorf("failed to build graph %s: %w", b.name, err)
		}
		if sb.next != "" {
			def.AddEdge(sb.name, sb.next)
		}
		if sb.condition != "" {
			def.AddConditionalEdge(sb.name, sb.condition)
		}
	}
	def.SetEntryPoint(b.entry)
	return def, nil
}

// MustBuild is like Build but panics on error. Intended for package-level graphs.
func (b *Builder) MustBuild() *graph.Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
