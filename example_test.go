package weft_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/dsl"
	"github.com/aretw0/weft/pkg/registry"
)

// ExampleEngine_Run builds a two-step graph in code and runs it.
func ExampleEngine_Run() {
	reg := registry.New()
	reg.RegisterTool("count", registry.ToolFunc(func(ctx context.Context, s *domain.State) (*domain.State, error) {
		n, _ := s.Data.Number("n")
		s.Data.Set("n", domain.Number(n+1))
		return s, nil
	}))
	reg.RegisterCondition("enough", registry.ConditionFunc(func(ctx context.Context, s *domain.State) (string, error) {
		if n, _ := s.Data.Number("n"); n >= 2 {
			return domain.End, nil
		}
		return "again", nil
	}))

	b := dsl.New("counter")
	b.Add("first").Do("count").Go("again").Entry()
	b.Add("again").Do("count").Branch("enough")

	engine := weft.New(weft.WithRegistry(reg))
	state, err := engine.Run(context.Background(), b.MustBuild(), "go")
	if err != nil {
		log.Fatal(err)
	}

	for _, line := range state.Logs {
		fmt.Println(line)
	}
	fmt.Println(state.Status)

	// Output:
	// Workflow started with input: go
	// Executing step: first
	// Moving to: again
	// Executing step: again
	// Condition 'enough' met. Routing to: END
	// Workflow reached END.
	// COMPLETED
}

// ExampleEngine_Load reloads a stored definition.
func ExampleEngine_Load() {
	reg := registry.New()
	reg.RegisterTool("noop", registry.ToolFunc(func(ctx context.Context, s *domain.State) (*domain.State, error) {
		return s, nil
	}))

	engine := weft.New(weft.WithRegistry(reg))
	def, warnings, err := engine.Load([]byte(`
name: stored
entry_point: a
nodes:
  - {name: a, tool_name: noop}
edges: []
conditional_edges:
  - {from_node: a, condition_function: not_registered}
`))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(def.Name, def.EntryPoint, len(def.ConditionalEdges))
	fmt.Println(warnings[0])

	// Output:
	// stored a 0
	// conditional edge from 'a' via 'not_registered' dropped: condition not registered
}
