/*
Package dsl provides a fluent Go builder for constructing Weft graph definitions.

It lets developers describe a graph in code instead of a stored YAML or JSON record,
which is handy for built-in workflows, unit tests and IDE autocompletion. Conditional
edges are always declared by registered condition name, so a graph built here can be
serialized by the codec without any reverse lookup.

Example usage:

	b := dsl.New("code-review")

	b.Add("extract").Do("extract_code").Go("analyze")
	b.Add("analyze").Do("check_complexity").Branch("quality_gate")
	b.Add("improve").Do("generate_improvements").Go("analyze")

	def, err := b.Entry("extract").Build()
*/
package dsl
