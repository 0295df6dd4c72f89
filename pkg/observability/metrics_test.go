package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/aretw0/weft/pkg/workflows/codereview"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordReviewRun(t *testing.T) {
	promReg := prometheus.NewRegistry()
	m, err := NewMetrics(promReg)
	require.NoError(t, err)

	reg := registry.New()
	codereview.Register(reg)
	eng := weft.New(weft.WithRegistry(reg), weft.WithLifecycleHooks(m.Hooks()))

	code := "def foo(x):\n  for i in x:\n    if i:\n      while True: pass"
	_, err = eng.Run(context.Background(), codereview.Definition(), code)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(codereview.GraphName, "COMPLETED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.stepVisits.WithLabelValues(codereview.GraphName, "analyze")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stepVisits.WithLabelValues(codereview.GraphName, "improve")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.routes.WithLabelValues(string(domain.RouteConditional))))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.routes.WithLabelValues(string(domain.RouteStatic))))
	assert.Equal(t, 0, testutil.CollectAndCount(m.stepErrors))
}

func TestMetrics_ToolErrors(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	hooks := m.Hooks()
	hooks.OnStepLeave(context.Background(), &domain.StepEvent{Step: "a", ToolName: "boom", Err: errors.New("x")})
	hooks.OnRunFinish(context.Background(), &domain.RunEvent{
		EventBase: domain.EventBase{Graph: "g"},
		Status:    domain.StatusFailed,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepErrors.WithLabelValues("boom")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("g", "FAILED")))
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	promReg := prometheus.NewRegistry()
	_, err := NewMetrics(promReg)
	require.NoError(t, err)

	_, err = NewMetrics(promReg)
	assert.Error(t, err)
}

func TestRegisterQueueDepth(t *testing.T) {
	promReg := prometheus.NewRegistry()
	depth := 3
	require.NoError(t, RegisterQueueDepth(promReg, func() int { return depth }))

	families, err := promReg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "weft_dispatch_queue_depth", families[0].GetName())
	assert.Equal(t, 3.0, families[0].GetMetric()[0].GetGauge().GetValue())
}

func TestMergeHooks(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) { calls = append(calls, "a:"+e.Step) },
	}
	b := domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) { calls = append(calls, "b:"+e.Step) },
		OnRoute:     func(ctx context.Context, e *domain.RouteEvent) { calls = append(calls, "route") },
	}

	merged := MergeHooks(a, domain.LifecycleHooks{}, b)
	merged.OnStepEnter(context.Background(), &domain.StepEvent{Step: "x"})
	merged.OnRoute(context.Background(), &domain.RouteEvent{})

	assert.Equal(t, []string{"a:x", "b:x", "route"}, calls)
	assert.Nil(t, merged.OnRunStart)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := registry.New()
	codereview.Register(reg)
	eng := weft.New(weft.WithRegistry(reg), weft.WithLifecycleHooks(LoggingHooks(logger)))

	_, err := eng.Run(context.Background(), codereview.Definition(), "def main(): pass")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "msg=run_start")
	assert.Contains(t, out, "msg=step_enter")
	assert.Contains(t, out, "step=extract")
	assert.Contains(t, out, "msg=run_finish")
	assert.Contains(t, out, "status=COMPLETED")
}
