package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a graph cannot run as defined (e.g. no entry point).
	ErrConfiguration = errors.New("configuration error")

	// ErrStepNotFound is returned when execution reaches a step name that was never added.
	ErrStepNotFound = errors.New("step not found")

	// ErrToolNotFound is returned when a tool name is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrConditionNotFound is returned when a condition name is not registered.
	ErrConditionNotFound = errors.New("condition not found")

	// ErrToolExecution is returned when a tool fails or panics.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrConditionExecution is returned when a condition fails or panics.
	ErrConditionExecution = errors.New("condition execution failed")

	// ErrReservedName is returned when a step is named after the END sentinel.
	ErrReservedName = errors.New("reserved step name")

	// ErrMaxStepsExceeded is returned when a run exceeds its configured step budget.
	ErrMaxStepsExceeded = errors.New("maximum steps exceeded")

	// ErrUnserializable is returned when a definition references code that has no registered name.
	ErrUnserializable = errors.New("definition is not serializable")

	// ErrGraphNotFound is returned when a graph ID cannot be found in the store.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrRunNotFound is returned when a run ID cannot be found in the store.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunFinalized is returned when a terminal run is finalized a second time.
	ErrRunFinalized = errors.New("run already finalized")
)

// ConfigurationError describes why a graph definition cannot start.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// StepNotFoundError reports a missing step reached during execution.
type StepNotFoundError struct {
	Step string
}

func (e *StepNotFoundError) Error() string {
	return fmt.Sprintf("step '%s' not found", e.Step)
}

func (e *StepNotFoundError) Is(target error) bool { return target == ErrStepNotFound }

// NotFoundKind distinguishes the two registry namespaces.
type NotFoundKind string

const (
	KindTool      NotFoundKind = "tool"
	KindCondition NotFoundKind = "condition"
)

// NotFoundError is a registry miss.
type NotFoundError struct {
	Kind NotFoundKind
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found in registry", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	switch e.Kind {
	case KindTool:
		return target == ErrToolNotFound
	case KindCondition:
		return target == ErrConditionNotFound
	}
	return false
}

// ToolExecutionError wraps a failure raised from within a tool's logic.
type ToolExecutionError struct {
	Step  string
	Tool  string
	Cause error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("step '%s' (tool '%s') failed: %v", e.Step, e.Tool, e.Cause)
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

func (e *ToolExecutionError) Is(target error) bool { return target == ErrToolExecution }

// ConditionExecutionError wraps a failure raised from within a condition.
type ConditionExecutionError struct {
	Step      string
	Condition string
	Cause     error
}

func (e *ConditionExecutionError) Error() string {
	return fmt.Sprintf("condition '%s' after step '%s' failed: %v", e.Condition, e.Step, e.Cause)
}

func (e *ConditionExecutionError) Unwrap() error { return e.Cause }

func (e *ConditionExecutionError) Is(target error) bool { return target == ErrConditionExecution }
