package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
)

// Tool implements the behavior of a step.
// It may mutate the state in place and/or return a replacement; a nil return keeps the input state.
type Tool interface {
	Invoke(ctx context.Context, state *domain.State) (*domain.State, error)
}

// ToolFunc adapts a plain function to the Tool interface.
type ToolFunc func(ctx context.Context, state *domain.State) (*domain.State, error)

// Invoke calls f.
func (f ToolFunc) Invoke(ctx context.Context, state *domain.State) (*domain.State, error) {
	return f(ctx, state)
}

// Condition inspects the state and returns the name of the next step (or domain.End).
type Condition interface {
	Route(ctx context.Context, state *domain.State) (string, error)
}

// ConditionFunc adapts a plain function to the Condition interface.
type ConditionFunc func(ctx context.Context, state *domain.State) (string, error)

// Route calls f.
func (f ConditionFunc) Route(ctx context.Context, state *domain.State) (string, error) {
	return f(ctx, state)
}

// Registry maps names to tools and conditions. The two namespaces are independent.
// Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	conditions map[string]Condition
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		tools:      make(map[string]Tool),
		conditions: make(map[string]Condition),
	}
}

// RegisterTool binds name to tool.
// If a tool with the same name exists, it is overwritten.
func (r *Registry) RegisterTool(name string, tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = tool
}

// RegisterCondition binds name to cond.
// If a condition with the same name exists, it is overwritten.
func (r *Registry) RegisterCondition(name string, cond Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions[name] = cond
}

// ResolveTool looks up a tool by name.
func (r *Registry) ResolveTool(name string) (Tool, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindTool, Name: name}
	}
	return tool, nil
}

// ResolveCondition looks up a condition by name.
func (r *Registry) ResolveCondition(name string) (Condition, error) {
	r.mu.RLock()
	cond, ok := r.conditions[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindCondition, Name: name}
	}
	return cond, nil
}

// HasTool reports whether name is a registered tool.
func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// HasCondition reports whether name is a registered condition.
func (r *Registry) HasCondition(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conditions[name]
	return ok
}

// Tools returns the registered tool names, sorted.
func (r *Registry) Tools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.tools)
}

// Conditions returns the registered condition names, sorted.
func (r *Registry) Conditions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.conditions)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var defaultRegistry = New()

// Default returns the process-wide registry.
// Domain packages populate it during initialization, before any graph is loaded or run.
func Default() *Registry {
	return defaultRegistry
}

// RegisterTool binds name to tool in the process-wide registry.
func RegisterTool(name string, tool Tool) {
	defaultRegistry.RegisterTool(name, tool)
}

// RegisterCondition binds name to cond in the process-wide registry.
func RegisterCondition(name string, cond Condition) {
	defaultRegistry.RegisterCondition(name, cond)
}
