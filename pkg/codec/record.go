package codec

// Record is the language-neutral form of a graph definition.
// Field names match the public graph creation payload.
type Record struct {
	Name             string                  `json:"name" yaml:"name" mapstructure:"name"`
	Nodes            []NodeRecord            `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Edges            []EdgeRecord            `json:"edges" yaml:"edges" mapstructure:"edges"`
	ConditionalEdges []ConditionalEdgeRecord `json:"conditional_edges" yaml:"conditional_edges" mapstructure:"conditional_edges"`
	EntryPoint       string                  `json:"entry_point" yaml:"entry_point" mapstructure:"entry_point"`
}

// NodeRecord binds a step name to a tool name.
type NodeRecord struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name"`
	ToolName string `json:"tool_name" yaml:"tool_name" mapstructure:"tool_name"`
}

// EdgeRecord is a static transition.
type EdgeRecord struct {
	FromNode string `json:"from_node" yaml:"from_node" mapstructure:"from_node"`
	ToNode   string `json:"to_node" yaml:"to_node" mapstructure:"to_node"`
}

// ConditionalEdgeRecord routes FromNode through a registered condition.
type ConditionalEdgeRecord struct {
	FromNode          string `json:"from_node" yaml:"from_node" mapstructure:"from_node"`
	ConditionFunction string `json:"condition_function" yaml:"condition_function" mapstructure:"condition_function"`
}

// Warning describes a conditional edge dropped while decoding.
type Warning struct {
	FromNode  string
	Condition string
	Reason    string
}

func (w Warning) String() string {
	return "conditional edge from '" + w.FromNode + "' via '" + w.Condition + "' dropped: " + w.Reason
}
