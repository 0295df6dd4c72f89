// Package mcp exposes graph and run management as Model Context Protocol tools.
package mcp
