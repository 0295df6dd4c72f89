package runtime

import (
	"context"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
)

func (e *Engine) emitRunStart(ctx context.Context, def *graph.Definition) {
	if e.hooks.OnRunStart == nil {
		return
	}
	e.hooks.OnRunStart(ctx, &domain.RunEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventRunStart, Graph: def.Name},
		EntryPoint: def.EntryPoint,
		Status:     domain.StatusRunning,
	})
}

func (e *Engine) emitRunFinish(ctx context.Context, def *graph.Definition, status domain.Status, steps int, d time.Duration, err error) {
	if e.hooks.OnRunFinish == nil {
		return
	}
	e.hooks.OnRunFinish(ctx, &domain.RunEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventRunFinish, Graph: def.Name},
		EntryPoint: def.EntryPoint,
		Status:     status,
		Steps:      steps,
		Duration:   d,
		Err:        err,
	})
}

func (e *Engine) emitStepEnter(ctx context.Context, def *graph.Definition, step domain.Step) {
	if e.hooks.OnStepEnter == nil {
		return
	}
	e.hooks.OnStepEnter(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStepEnter, Graph: def.Name},
		Step:      step.Name,
		ToolName:  step.ToolName,
	})
}

func (e *Engine) emitStepLeave(ctx context.Context, def *graph.Definition, step domain.Step, d time.Duration, err error) {
	if e.hooks.OnStepLeave == nil {
		return
	}
	e.hooks.OnStepLeave(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStepLeave, Graph: def.Name},
		Step:      step.Name,
		ToolName:  step.ToolName,
		Duration:  d,
		Err:       err,
	})
}

func (e *Engine) emitRoute(ctx context.Context, def *graph.Definition, from, to string, kind domain.RouteKind, condition string) {
	if e.hooks.OnRoute == nil {
		return
	}
	e.hooks.OnRoute(ctx, &domain.RouteEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRoute, Graph: def.Name},
		From:      from,
		To:        to,
		Kind:      kind,
		Condition: condition,
	})
}
