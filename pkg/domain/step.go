package domain

// End is the reserved step name signaling explicit termination.
// It is never a real step and cannot be added to a graph.
const End = "END"

// Step is a named unit of work. ToolName is a registry key, not a reference to code,
// which is what keeps a graph serializable.
type Step struct {
	Name     string `json:"name" yaml:"name"`
	ToolName string `json:"tool_name" yaml:"tool_name"`
}
