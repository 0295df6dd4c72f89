package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/weft/pkg/domain"
)

// MergeHooks returns hooks that call each of the given hooks in order.
// Nil callbacks are skipped.
func MergeHooks(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	var merged domain.LifecycleHooks

	var runStart, runFinish []func(context.Context, *domain.RunEvent)
	var stepEnter, stepLeave []func(context.Context, *domain.StepEvent)
	var route []func(context.Context, *domain.RouteEvent)

	for _, h := range all {
		if h.OnRunStart != nil {
			runStart = append(runStart, h.OnRunStart)
		}
		if h.OnRunFinish != nil {
			runFinish = append(runFinish, h.OnRunFinish)
		}
		if h.OnStepEnter != nil {
			stepEnter = append(stepEnter, h.OnStepEnter)
		}
		if h.OnStepLeave != nil {
			stepLeave = append(stepLeave, h.OnStepLeave)
		}
		if h.OnRoute != nil {
			route = append(route, h.OnRoute)
		}
	}

	merged.OnRunStart = chain(runStart)
	merged.OnRunFinish = chain(runFinish)
	merged.OnStepEnter = chain(stepEnter)
	merged.OnStepLeave = chain(stepLeave)
	merged.OnRoute = chain(route)
	return merged
}

func chain[E any](fns []func(context.Context, E)) func(context.Context, E) {
	switch len(fns) {
	case 0:
		return nil
	case 1:
		return fns[0]
	}
	return func(ctx context.Context, e E) {
		for _, fn := range fns {
			fn(ctx, e)
		}
	}
}

// LoggingHooks logs every lifecycle event at debug level, and failures at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "run_start", "graph", e.Graph, "entry_point", e.EntryPoint)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "run_finish", "graph", e.Graph, "status", e.Status, "steps", e.Steps, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "run_finish", "graph", e.Graph, "status", e.Status, "steps", e.Steps, "duration", e.Duration)
		},
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_enter", "graph", e.Graph, "step", e.Step, "tool", e.ToolName)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "step_leave", "graph", e.Graph, "step", e.Step, "tool", e.ToolName, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "step_leave", "graph", e.Graph, "step", e.Step, "duration", e.Duration)
		},
		OnRoute: func(ctx context.Context, e *domain.RouteEvent) {
			logger.DebugContext(ctx, "route", "graph", e.Graph, "from", e.From, "to", e.To, "kind", e.Kind, "condition", e.Condition)
		},
	}
}
