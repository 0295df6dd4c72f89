package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/validator"
	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/codec"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/aretw0/weft/pkg/workflows/codereview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewCode = "def foo(x):\n  for i in x:\n    if i:\n      while True: pass"

type fixture struct {
	reg  *registry.Registry
	defs *memory.DefinitionStore
	runs ports.RunStore
	d    *dispatch.Dispatcher
}

func newFixture(t *testing.T, opts ...dispatch.Option) *fixture {
	t.Helper()
	return newFixtureWithRuns(t, memory.NewRunStore(), opts...)
}

func newFixtureWithRuns(t *testing.T, runs ports.RunStore, opts ...dispatch.Option) *fixture {
	t.Helper()
	reg := registry.New()
	codereview.Register(reg)
	reg.RegisterTool("explode", registry.ToolFunc(func(ctx context.Context, s *domain.State) (*domain.State, error) {
		return nil, errors.New("disk on fire")
	}))

	f := &fixture{
		reg:  reg,
		defs: memory.NewDefinitionStore(),
		runs: runs,
	}
	f.d = dispatch.New(f.defs, f.runs, weft.New(weft.WithRegistry(reg)), reg, opts...)
	require.NoError(t, f.d.PutGraph(context.Background(), codereview.GraphName, codereview.Definition()))
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.d.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.d.Stop(ctx)
	})
}

func (f *fixture) waitTerminal(t *testing.T, runID string) *domain.Run {
	t.Helper()
	var run *domain.Run
	require.Eventually(t, func() bool {
		var err error
		run, err = f.d.Get(context.Background(), runID)
		return err == nil && run.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return run
}

func TestDispatcher_DemoReviewCompletes(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	run, err := f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, run.Status)
	assert.Equal(t, []string{dispatch.InitLog}, run.State.Logs)

	final := f.waitTerminal(t, run.ID)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Equal(t, domain.StatusCompleted, final.State.Status)
	assert.Empty(t, final.Error)
	require.NotNil(t, final.FinishedAt)
	assert.False(t, final.FinishedAt.Before(final.StartedAt))
	assert.Equal(t, "Workflow reached END.", final.State.LastLog())

	score, _ := final.State.Data.Number(codereview.KeyComplexityScore)
	assert.Equal(t, 5.0, score)
}

func TestDispatcher_UnknownGraphIsRejectedBeforeScheduling(t *testing.T) {
	f := newFixture(t)

	_, err := f.d.Submit(context.Background(), "nope", "x")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	ids, err := f.d.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDispatcher_ToolFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	def := graph.New("explosive")
	require.NoError(t, def.AddStep("boom", "explode"))
	def.SetEntryPoint("boom")
	require.NoError(t, f.d.PutGraph(context.Background(), "explosive", def))

	run, err := f.d.Submit(context.Background(), "explosive", nil)
	require.NoError(t, err)

	final := f.waitTerminal(t, run.ID)
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Contains(t, final.Error, "disk on fire")
	assert.True(t, strings.HasPrefix(final.State.LastLog(), "CRITICAL ERROR: "))
	assert.Contains(t, final.State.LastLog(), "disk on fire")
	assert.Contains(t, final.State.Logs, "Executing step: boom")
}

type panicRunner struct{}

func (panicRunner) Run(ctx context.Context, def *graph.Definition, input any) (*domain.State, error) {
	panic("runner exploded")
}

func TestDispatcher_RunnerPanicFailsRun(t *testing.T) {
	reg := registry.New()
	codereview.Register(reg)
	defs, runs := memory.NewDefinitionStore(), memory.NewRunStore()
	d := dispatch.New(defs, runs, panicRunner{}, reg)
	require.NoError(t, d.PutGraph(context.Background(), "g", codereview.Definition()))
	require.NoError(t, d.Start(context.Background()))
	defer func() { _ = d.Stop(context.Background()) }()

	run, err := d.Submit(context.Background(), "g", reviewCode)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, err := d.Get(context.Background(), run.ID)
		return err == nil && r.Status == domain.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	r, _ := d.Get(context.Background(), run.ID)
	assert.Equal(t, "CRITICAL ERROR: panic in runner: runner exploded", r.State.LastLog())
	assert.Equal(t, []string{dispatch.InitLog, r.State.LastLog()}, r.State.Logs)
}

func TestDispatcher_QueueFull(t *testing.T) {
	f := newFixture(t, dispatch.WithQueueSize(1))

	first, err := f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
	require.NoError(t, err)
	assert.Equal(t, 1, f.d.QueueDepth())

	_, err = f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
	assert.ErrorIs(t, err, dispatch.ErrQueueFull)

	ids, err := f.d.List(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 2)
	for _, id := range ids {
		if id == first.ID {
			continue
		}
		rejected, err := f.d.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, rejected.Status)
	}
}

func TestDispatcher_RateLimit(t *testing.T) {
	f := newFixture(t, dispatch.WithRateLimit(0.001, 1))

	_, err := f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
	require.NoError(t, err)

	_, err = f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
	assert.ErrorIs(t, err, dispatch.ErrRateLimited)
}

func TestDispatcher_StopFailsQueuedRuns(t *testing.T) {
	f := newFixture(t)

	run, err := f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
	require.NoError(t, err)

	require.NoError(t, f.d.Stop(context.Background()))

	final, err := f.d.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Equal(t, "CRITICAL ERROR: "+dispatch.ErrStopped.Error(), final.State.LastLog())

	_, err = f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
	assert.ErrorIs(t, err, dispatch.ErrStopped)
	assert.ErrorIs(t, f.d.Start(context.Background()), dispatch.ErrStopped)
}

func TestDispatcher_CreateGraph(t *testing.T) {
	var n atomic.Int32
	f := newFixture(t, dispatch.WithIDGenerator(func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}))
	ctx := context.Background()

	rec, err := codec.Encode(codereview.Definition(), f.reg)
	require.NoError(t, err)

	id, err := f.d.CreateGraph(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)

	def, err := f.d.Graph(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, codereview.Definition(), def)

	t.Run("unregistered condition", func(t *testing.T) {
		bad := *rec
		bad.ConditionalEdges = []codec.ConditionalEdgeRecord{{FromNode: "analyze", ConditionFunction: "ghost"}}
		_, err := f.d.CreateGraph(ctx, &bad)
		assert.ErrorIs(t, err, domain.ErrUnserializable)
	})

	t.Run("unregistered tool", func(t *testing.T) {
		bad := codec.Record{Name: "x", EntryPoint: "a", Nodes: []codec.NodeRecord{{Name: "a", ToolName: "ghost"}}}
		_, err := f.d.CreateGraph(ctx, &bad)
		assert.ErrorIs(t, err, validator.ErrInvalidGraph)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := f.d.CreateGraph(ctx, &codec.Record{Name: "x"})
		assert.ErrorIs(t, err, codec.ErrMalformed)
	})

	ids, err := f.d.Graphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{codereview.GraphName, "id-1"}, ids)
}

func TestDispatcher_ClockStampsRuns(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f := newFixture(t, dispatch.WithClock(func() time.Time { return fixed }))
	f.start(t)

	run, err := f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(run.StartedAt))

	final := f.waitTerminal(t, run.ID)
	require.NotNil(t, final.FinishedAt)
	assert.True(t, fixed.Equal(*final.FinishedAt))
}

func TestDispatcher_ManyConcurrentRuns(t *testing.T) {
	f := newFixture(t, dispatch.WithWorkers(4), dispatch.WithLocker(memory.NewLocker(), time.Second))
	f.start(t)

	var ids []string
	for i := 0; i < 20; i++ {
		run, err := f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	for _, id := range ids {
		final := f.waitTerminal(t, id)
		assert.Equal(t, domain.StatusCompleted, final.Status, "run %s", id)
		assert.Equal(t, reviewCode, final.State.InputData)
	}
}

type brokenLocker struct{}

func (brokenLocker) Lock(context.Context, string, time.Duration) (ports.UnlockFunc, error) {
	return nil, errors.New("redis: connection refused")
}

func TestDispatcher_LockFailureFailsRun(t *testing.T) {
	f := newFixture(t, dispatch.WithLocker(brokenLocker{}, time.Second))
	f.start(t)

	run, err := f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
	require.NoError(t, err)

	final := f.waitTerminal(t, run.ID)
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Contains(t, final.Error, "connection refused")
	assert.True(t, strings.HasPrefix(final.State.LastLog(), "CRITICAL ERROR: "))
	assert.Contains(t, final.State.LastLog(), "connection refused")
	assert.NotNil(t, final.FinishedAt)
}

// flakyRunStore rejects every attempt to mark a run as running.
type flakyRunStore struct {
	*memory.RunStore
}

func (s flakyRunStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if run.Status == domain.StatusRunning {
		return errors.New("write timeout")
	}
	return s.RunStore.SaveRun(ctx, run)
}

func TestDispatcher_RunningSaveFailureFailsRun(t *testing.T) {
	f := newFixtureWithRuns(t, flakyRunStore{memory.NewRunStore()})
	f.start(t)

	run, err := f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
	require.NoError(t, err)

	final := f.waitTerminal(t, run.ID)
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Contains(t, final.Error, "failed to mark run as running")
	assert.Contains(t, final.Error, "write timeout")
}

// slowRunStore delays the initial save of every run.
type slowRunStore struct {
	*memory.RunStore
	delay time.Duration
}

func (s slowRunStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if run.Status == domain.StatusSubmitted {
		time.Sleep(s.delay)
	}
	return s.RunStore.SaveRun(ctx, run)
}

func TestDispatcher_StopDuringSubmitLeavesNoOrphan(t *testing.T) {
	runs := slowRunStore{RunStore: memory.NewRunStore(), delay: 100 * time.Millisecond}
	f := newFixtureWithRuns(t, runs)
	f.start(t)

	type result struct {
		run *domain.Run
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := f.d.Submit(context.Background(), codereview.GraphName, reviewCode)
		done <- result{run, err}
	}()

	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.d.Stop(ctx))

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not return")
	}

	if res.err != nil {
		assert.ErrorIs(t, res.err, dispatch.ErrStopped)
		return
	}

	ids, err := runs.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)

	final, err := runs.LoadRun(context.Background(), res.run.ID)
	require.NoError(t, err)
	assert.True(t, final.Status.IsTerminal(), "run left in %s", final.Status)
}
