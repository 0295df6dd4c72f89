package observability

import (
	"context"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by engine hooks.
type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	stepVisits   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	stepErrors   *prometheus.CounterVec
	routes       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weft_runs_total",
			Help: "Finished graph runs by graph and final status.",
		}, []string{"graph", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weft_run_duration_seconds",
			Help:    "Wall time of graph runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"graph"}),
		stepVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weft_step_visits_total",
			Help: "Total number of step executions.",
		}, []string{"graph", "step"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weft_tool_duration_seconds",
			Help:    "Duration of tool invocations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		stepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weft_tool_errors_total",
			Help: "Tool invocations that returned an error or panicked.",
		}, []string{"tool"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weft_routes_total",
			Help: "Routing decisions by kind.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{m.runs, m.runDuration, m.stepVisits, m.stepDuration, m.stepErrors, m.routes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			m.runs.WithLabelValues(e.Graph, string(e.Status)).Inc()
			m.runDuration.WithLabelValues(e.Graph).Observe(e.Duration.Seconds())
		},
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			m.stepVisits.WithLabelValues(e.Graph, e.Step).Inc()
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			m.stepDuration.WithLabelValues(e.ToolName).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.stepErrors.WithLabelValues(e.ToolName).Inc()
			}
		},
		OnRoute: func(ctx context.Context, e *domain.RouteEvent) {
			m.routes.WithLabelValues(string(e.Kind)).Inc()
		},
	}
}

// RegisterQueueDepth exposes depth as the weft_dispatch_queue_depth gauge.
func RegisterQueueDepth(reg prometheus.Registerer, depth func() int) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "weft_dispatch_queue_depth",
		Help: "Runs waiting for a dispatcher worker.",
	}, func() float64 { return float64(depth()) }))
}
