// Package graph holds the structural model of a Weft graph: steps, static edges,
// conditional edges and the entry point.
package graph
