package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/registry"
)

// ErrInvalidGraph is returned when a definition fails validation.
var ErrInvalidGraph = errors.New("invalid graph")

// ValidateGraph checks a definition against a registry: structural problems
// (entry point, dangling static edges) plus tools and conditions that are not registered.
func ValidateGraph(def *graph.Definition, reg *registry.Registry) error {
	var problems []string

	if err := def.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	for _, name := range def.StepNames() {
		step := def.Steps[name]
		if !reg.HasTool(step.ToolName) {
			problems = append(problems, fmt.Sprintf("step '%s' uses unregistered tool '%s'", name, step.ToolName))
		}
	}

	sources := make([]string, 0, len(def.ConditionalEdges))
	for src := range def.ConditionalEdges {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		cond := def.ConditionalEdges[src]
		if !reg.HasCondition(cond) {
			problems = append(problems, fmt.Sprintf("step '%s' routes through unregistered condition '%s'", src, cond))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(problems, "; "))
	}
	return nil
}

// UnreachableSteps returns steps that no walk from the entry point can visit.
// Condition destinations are only known at runtime, so any graph whose reachable part
// contains a conditional edge is treated as reaching every step.
func UnreachableSteps(def *graph.Definition) []string {
	if _, ok := def.Step(def.EntryPoint); !ok {
		return nil
	}

	visited := make(map[string]bool)
	queue := []string{def.EntryPoint}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] || current == domain.End {
			continue
		}
		visited[current] = true

		if _, ok := def.ConditionalEdge(current); ok {
			return nil
		}
		if dst, ok := def.Edge(current); ok {
			queue = append(queue, dst)
		}
	}

	var out []string
	for _, name := range def.StepNames() {
		if !visited[name] {
			out = append(out, name)
		}
	}
	return out
}
