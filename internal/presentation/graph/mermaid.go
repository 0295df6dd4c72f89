package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
)

// Overlay holds what a run did, to be drawn over the static graph.
type Overlay struct {
	Visited []string
	Current string

	// Routes are conditional transitions observed at runtime, source to destination.
	Routes []Route
}

// Route is one observed conditional transition.
type Route struct {
	From, To, Condition string
}

// OverlayFromState reconstructs an Overlay from the trace of a run.
// Current is set only while the run is still in progress.
func OverlayFromState(state *domain.State) *Overlay {
	o := &Overlay{}
	if state == nil {
		return o
	}

	seen := make(map[Route]bool)
	last := ""
	for _, line := range state.Logs {
		if step, ok := strings.CutPrefix(line, "Executing step: "); ok {
			o.Visited = append(o.Visited, step)
			last = step
			continue
		}
		rest, ok := strings.CutPrefix(line, "Condition '")
		if !ok || last == "" {
			continue
		}
		cond, dest, ok := strings.Cut(rest, "' met. Routing to: ")
		if !ok {
			continue
		}
		r := Route{From: last, To: dest, Condition: cond}
		if !seen[r] {
			seen[r] = true
			o.Routes = append(o.Routes, r)
		}
	}

	if !state.Status.IsTerminal() {
		o.Current = last
	}
	return o
}

// Mermaid renders def as a Mermaid flowchart.
//
// Steps are drawn as subroutines labelled with their tool, the entry point gets a
// start marker and each conditional edge becomes a decision node. Conditional
// destinations are unknown until runtime; those observed in overlay are drawn dotted.
func Mermaid(def *graph.Definition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	usesEnd := false

	if def.EntryPoint != "" {
		sb.WriteString("    __start((\"start\"))\n")
		fmt.Fprintf(&sb, "    __start --> %s\n", sanitizeID(def.EntryPoint))
	}

	for _, name := range def.StepNames() {
		step := def.Steps[name]
		fmt.Fprintf(&sb, "    %s[[\"%s <br/> %s\"]]\n", sanitizeID(name), escape(name), escape(step.ToolName))
	}

	for _, src := range sortedKeys(def.Edges) {
		dst := def.Edges[src]
		if dst == domain.End {
			usesEnd = true
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeID(src), nodeID(dst))
	}

	for _, src := range sortedKeys(def.ConditionalEdges) {
		cond := def.ConditionalEdges[src]
		fmt.Fprintf(&sb, "    %s{\"%s\"}\n", decisionID(src), escape(cond))
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeID(src), decisionID(src))
	}

	if overlay != nil {
		for _, r := range overlay.Routes {
			if r.To == domain.End {
				usesEnd = true
			}
			from := sanitizeID(r.From)
			if _, ok := def.ConditionalEdges[r.From]; ok {
				from = decisionID(r.From)
			}
			fmt.Fprintf(&sb, "    %s -.-> %s\n", from, nodeID(r.To))
		}
	}

	if usesEnd {
		sb.WriteString("    __end((\"END\"))\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		styled := make(map[string]bool)
		for _, name := range overlay.Visited {
			id := sanitizeID(name)
			if id == "" || styled[id] {
				continue
			}
			styled[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", id)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeID(overlay.Current))
		}
	}

	return sb.String()
}

func nodeID(name string) string {
	if name == domain.End {
		return "__end"
	}
	return sanitizeID(name)
}

func decisionID(src string) string {
	return sanitizeID(src) + "__cond"
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
