package dsl

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	name      string
	tool      string
	next      string
	condition string
	builder   *Builder
}

// Do binds the step to a registered tool name.
func (s *StepBuilder) Do(tool string) *StepBuilder {
	s.tool = tool
	return s
}

// Go adds a static edge to the target step (or domain.End).
func (s *StepBuilder) Go(target string) *StepBuilder {
	s.next = target
	return s
}

// Branch routes the step through a registered condition.
// It takes priority over any static edge set with Go.
func (s *StepBuilder) Branch(condition string) *StepBuilder {
	s.condition = condition
	return s
}

// Entry marks this step as the entry point.
func (s *StepBuilder) Entry() *StepBuilder {
	s.builder.entry = s.name
	return s
}

// Terminal removes any outgoing edge so the run stops after this step.
func (s *StepBuilder) Terminal() *StepBuilder {
	s.next = ""
	s.condition = ""
	return s
}
