package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/weft"

// Engine walks graph definitions. It holds no per-run state.
type Engine struct {
	registry *registry.Registry
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	tracer   trace.Tracer
	maxSteps int
}

// NewEngine creates a new engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry.Default(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine resolves names against.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Run executes def from its entry point with the given input.
//
// A missing entry point fails before any state exists. Every other failure returns the
// partial state, marked FAILED, together with the error. Normal termination, either by
// reaching END or by a step with no outgoing edge, marks the state COMPLETED.
//
// ctx is handed to tools and conditions; the loop itself does not stop on cancellation.
func (e *Engine) Run(ctx context.Context, def *graph.Definition, input any) (*domain.State, error) {
	if def == nil {
		return nil, &domain.ConfigurationError{Reason: "graph definition is nil"}
	}
	if def.EntryPoint == "" {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("graph '%s' has no entry point", def.Name)}
	}

	ctx, span := e.tracer.Start(ctx, "weft.run",
		trace.WithAttributes(
			attribute.String("weft.graph", def.Name),
			attribute.String("weft.entry_point", def.EntryPoint),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	logger := e.logger.With("graph", def.Name)
	start := time.Now()

	state := domain.NewState(input)
	state.Status = domain.StatusRunning
	state.Logf("Workflow started with input: %v", input)

	logger.Info("Run started", "entry_point", def.EntryPoint)
	e.emitRunStart(ctx, def)

	state, steps, err := e.loop(ctx, def, state, logger)

	if err != nil {
		state.Status = domain.StatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Run failed", "steps", steps, "err", err)
	} else {
		state.Status = domain.StatusCompleted
		span.SetStatus(codes.Ok, "")
		logger.Info("Run completed", "steps", steps)
	}
	span.SetAttributes(attribute.Int("weft.steps", steps))

	e.emitRunFinish(ctx, def, state.Status, steps, time.Since(start), err)
	return state, err
}

func (e *Engine) loop(ctx context.Context, def *graph.Definition, state *domain.State, logger *slog.Logger) (*domain.State, int, error) {
	current := def.EntryPoint
	steps := 0

	for {
		if current == domain.End {
			state.Log("Workflow reached END.")
			logger.Debug("Reached END")
			return state, steps, nil
		}

		step, ok := def.Step(current)
		if !ok {
			return state, steps, &domain.StepNotFoundError{Step: current}
		}

		if e.maxSteps > 0 && steps >= e.maxSteps {
			state.Logf("Step budget of %d exhausted before '%s'.", e.maxSteps, current)
			return state, steps, fmt.Errorf("%w: %d steps executed, next was '%s'", domain.ErrMaxStepsExceeded, steps, current)
		}

		tool, err := e.registry.ResolveTool(step.ToolName)
		if err != nil {
			return state, steps, fmt.Errorf("step '%s': %w", current, err)
		}

		state.Logf("Executing step: %s", current)
		logger.Debug("Executing step", "step", current, "tool", step.ToolName)
		steps++

		next, execErr := e.executeStep(ctx, def, step, tool, state)
		if execErr != nil {
			state.Logf("Error in step %s: %v", current, execErr.Cause)
			return state, steps, execErr
		}
		state = next

		dest, more, err := e.route(ctx, def, current, state, logger)
		if err != nil {
			return state, steps, err
		}
		if !more {
			return state, steps, nil
		}
		current = dest
	}
}

// executeStep runs the tool for step inside its own span. A nil returned state keeps the input state.
func (e *Engine) executeStep(ctx context.Context, def *graph.Definition, step domain.Step, tool registry.Tool, state *domain.State) (*domain.State, *domain.ToolExecutionError) {
	ctx, span := e.tracer.Start(ctx, "weft.step",
		trace.WithAttributes(
			attribute.String("weft.graph", def.Name),
			attribute.String("weft.step", step.Name),
			attribute.String("weft.tool", step.ToolName),
		),
	)
	defer span.End()

	e.emitStepEnter(ctx, def, step)
	start := time.Now()

	next, err := e.invokeTool(ctx, tool, state)

	var execErr *domain.ToolExecutionError
	if err != nil {
		execErr = &domain.ToolExecutionError{Step: step.Name, Tool: step.ToolName, Cause: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.emitStepLeave(ctx, def, step, time.Since(start), err)

	if execErr != nil {
		return state, execErr
	}
	if next == nil {
		next = state
	}
	if next.Data == nil {
		next.Data = make(domain.Data)
	}
	return next, nil
}

// route picks the next step. Conditional edges win over static ones.
// more is false when current has no outgoing edge.
func (e *Engine) route(ctx context.Context, def *graph.Definition, current string, state *domain.State, logger *slog.Logger) (dest string, more bool, err error) {
	if condName, ok := def.ConditionalEdge(current); ok {
		cond, err := e.registry.ResolveCondition(condName)
		if err != nil {
			return "", false, fmt.Errorf("step '%s': %w", current, err)
		}

		dest, err := e.invokeCondition(ctx, cond, state)
		if err != nil {
			state.Logf("Error in condition %s: %v", condName, err)
			return "", false, &domain.ConditionExecutionError{Step: current, Condition: condName, Cause: err}
		}

		state.Logf("Condition '%s' met. Routing to: %s", condName, dest)
		logger.Debug("Routing", "from", current, "to", dest, "condition", condName)
		e.emitRoute(ctx, def, current, dest, domain.RouteConditional, condName)
		return dest, true, nil
	}

	if dest, ok := def.Edge(current); ok {
		state.Logf("Moving to: %s", dest)
		logger.Debug("Routing", "from", current, "to", dest)
		e.emitRoute(ctx, def, current, dest, domain.RouteStatic, "")
		return dest, true, nil
	}

	state.Log("No outgoing edge found. Stopping.")
	e.emitRoute(ctx, def, current, "", domain.RouteNone, "")
	return "", false, nil
}
