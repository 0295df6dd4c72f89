package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/weft/internal/runtime"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/dsl"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestEngine_LifecycleHooks(t *testing.T) {
	reg := registry.New()
	reg.RegisterTool("noop", registry.ToolFunc(noop))
	reg.RegisterCondition("done", registry.ConditionFunc(func(ctx context.Context, s *domain.State) (string, error) {
		return domain.End, nil
	}))

	b := dsl.New("hooks")
	b.Add("start").Do("noop").Go("finish").Entry()
	b.Add("finish").Do("noop").Branch("done")

	var entered, left []string
	var routes []domain.RouteEvent
	var finish *domain.RunEvent
	started := false

	hooks := domain.LifecycleHooks{
		OnRunStart:  func(ctx context.Context, e *domain.RunEvent) { started = true },
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) { finish = e },
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) { entered = append(entered, e.Step) },
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) { left = append(left, e.Step) },
		OnRoute:     func(ctx context.Context, e *domain.RouteEvent) { routes = append(routes, *e) },
	}

	engine := runtime.NewEngine(runtime.WithRegistry(reg), runtime.WithLifecycleHooks(hooks))
	_, err := engine.Run(context.Background(), b.MustBuild(), nil)
	require.NoError(t, err)

	assert.True(t, started)
	assert.Equal(t, []string{"start", "finish"}, entered)
	assert.Equal(t, []string{"start", "finish"}, left)

	require.Len(t, routes, 2)
	assert.Equal(t, domain.RouteStatic, routes[0].Kind)
	assert.Equal(t, "finish", routes[0].To)
	assert.Equal(t, domain.RouteConditional, routes[1].Kind)
	assert.Equal(t, "done", routes[1].Condition)

	require.NotNil(t, finish)
	assert.Equal(t, domain.StatusCompleted, finish.Status)
	assert.Equal(t, 2, finish.Steps)
	assert.Equal(t, "hooks", finish.Graph)
}

func TestEngine_TracingSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	reg := registry.New()
	reg.RegisterTool("noop", registry.ToolFunc(noop))
	reg.RegisterTool("fail", registry.ToolFunc(func(ctx context.Context, s *domain.State) (*domain.State, error) {
		return nil, errors.New("nope")
	}))

	b := dsl.New("traced")
	b.Add("a").Do("noop").Go("b").Entry()
	b.Add("b").Do("fail")

	engine := runtime.NewEngine(runtime.WithRegistry(reg), runtime.WithTracer(tp.Tracer("test")))
	_, err := engine.Run(context.Background(), b.MustBuild(), nil)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "weft.step", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "weft.step", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "weft.run", spans[2].Name())
	assert.Equal(t, codes.Error, spans[2].Status().Code)

	assert.Equal(t, spans[2].SpanContext().SpanID(), spans[0].Parent().SpanID())
}
