// Package runtime implements the graph execution loop.
//
// A run is strictly sequential: one step at a time, each step's tool finishing before
// routing is decided and the next step starts. Many runs may share one read-only
// graph.Definition and one Engine concurrently.
package runtime
