package runtime

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/registry"
)

func (e *Engine) invokeTool(ctx context.Context, tool registry.Tool, state *domain.State) (next *domain.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tool.Invoke(ctx, state)
}

func (e *Engine) invokeCondition(ctx context.Context, cond registry.Condition, state *domain.State) (dest string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("condition panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cond.Route(ctx, state)
}
