/*
Package weft is a small execution engine for named graphs of tool steps.

A graph is a set of steps, each bound by name to a tool registered in a registry,
joined by static edges and by conditional edges that ask a registered condition for the
next step. Running a graph threads one execution context (state) through the steps, one
at a time, until a step routes to END or has nowhere left to go.

# Concept

Weft separates three things:

  - Logic: tools and conditions, plain Go functions registered under string names.
  - Structure: graph.Definition, built in code with pkg/dsl or loaded from a stored
    record with pkg/codec. Definitions only ever refer to logic by name.
  - Execution: Engine.Run walks a definition and returns the final state, whose Logs
    field is the ordered trace of every step and routing decision.

Because definitions only hold names, they can be persisted and reloaded by a later
process. Durable, asynchronous execution (run ids, stores, a worker pool) lives in
pkg/dispatch.

# Usage

	reg := registry.New()
	reg.RegisterTool("greet", registry.ToolFunc(func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Data.Set("greeting", domain.String("hello"))
		return s, nil
	}))

	b := dsl.New("hello")
	b.Add("start").Do("greet").Go(domain.End).Entry()

	eng := weft.New(weft.WithRegistry(reg))
	state, err := eng.Run(ctx, b.MustBuild(), nil)
*/
package weft
