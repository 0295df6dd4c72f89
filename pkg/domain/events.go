package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart  EventType = "run_start"
	EventRunFinish EventType = "run_finish"
	EventStepEnter EventType = "step_enter"
	EventStepLeave EventType = "step_leave"
	EventRoute     EventType = "route"
)

// RouteKind tells how the next step was chosen.
type RouteKind string

const (
	RouteConditional RouteKind = "conditional"
	RouteStatic      RouteKind = "static"
	RouteNone        RouteKind = "none"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Graph     string    `json:"graph,omitempty"`
}

// RunEvent marks the start or the end of a run.
type RunEvent struct {
	EventBase
	EntryPoint string        `json:"entry_point"`
	Status     Status        `json:"status,omitempty"`
	Steps      int           `json:"steps,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// StepEvent represents entry into or exit from a step.
type StepEvent struct {
	EventBase
	Step     string        `json:"step"`
	ToolName string        `json:"tool_name"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// RouteEvent records a routing decision taken after a step.
type RouteEvent struct {
	EventBase
	From      string    `json:"from"`
	To        string    `json:"to,omitempty"`
	Kind      RouteKind `json:"kind"`
	Condition string    `json:"condition,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously on the run's goroutine.
type LifecycleHooks struct {
	OnRunStart  func(context.Context, *RunEvent)
	OnRunFinish func(context.Context, *RunEvent)
	OnStepEnter func(context.Context, *StepEvent)
	OnStepLeave func(context.Context, *StepEvent)
	OnRoute     func(context.Context, *RouteEvent)
}
