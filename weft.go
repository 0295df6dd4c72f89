package weft

import (
	"context"
	"io"
	"log/slog"

	"github.com/aretw0/weft/internal/runtime"
	"github.com/aretw0/weft/pkg/codec"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/registry"
	"go.opentelemetry.io/otel/trace"
)

// Engine is the high-level entry point for the Weft library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime  *runtime.Engine
	registry *registry.Registry
	hooks    domain.LifecycleHooks
	tracer   trace.Tracer
	logger   *slog.Logger
	maxSteps int
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRegistry sets the registry tools and conditions are resolved from.
// Defaults to the process-wide registry.Default().
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer sets the OpenTelemetry tracer for run and step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithMaxSteps bounds the number of steps a single run may execute (0 = unbounded).
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// New initializes a new Weft Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.registry == nil {
		eng.registry = registry.Default()
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithRegistry(eng.registry),
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithMaxSteps(eng.maxSteps),
	}
	if eng.tracer != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithTracer(eng.tracer))
	}

	eng.runtime = runtime.NewEngine(runtimeOpts...)
	return eng
}

// Run executes def with the given input and returns the final state.
// On failure the partial state is returned alongside the error, except for
// configuration errors, which fail before any state exists.
func (e *Engine) Run(ctx context.Context, def *graph.Definition, input any) (*domain.State, error) {
	return e.runtime.Run(ctx, def, input)
}

// Load decodes a stored definition (JSON or YAML) against the engine's registry.
// Conditional edges naming unregistered conditions are dropped and reported as warnings.
func (e *Engine) Load(data []byte) (*graph.Definition, []codec.Warning, error) {
	return codec.Load(data, e.registry, e.logger)
}

// Dump encodes def for storage. It fails if def references an unregistered condition.
func (e *Engine) Dump(def *graph.Definition, format codec.Format) ([]byte, error) {
	return codec.Dump(def, e.registry, format)
}

// Registry returns the registry the engine resolves names against.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}
