package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/internal/validator"
	"github.com/aretw0/weft/pkg/codec"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// InitLog is the first log line of every submitted run.
const InitLog = "Run initialized, waiting for execution..."

type task struct {
	runID   string
	graphID string
	input   any
}

// Dispatcher schedules runs onto a worker pool and persists their records.
type Dispatcher struct {
	defs     ports.DefinitionStore
	runs     ports.RunStore
	runner   ports.Runner
	registry *registry.Registry

	workers   int
	queueSize int
	limiter   *rate.Limiter
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	queue chan task

	// admit is held for reading by Submit and for writing while Stop closes quit,
	// so a run is either enqueued before the drain or rejected.
	admit sync.RWMutex

	mu      sync.Mutex
	started bool
	stopped bool
	quit    chan struct{}
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New creates a Dispatcher. reg is used to decode stored definitions and must be the
// registry runner resolves names against.
func New(defs ports.DefinitionStore, runs ports.RunStore, runner ports.Runner, reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		defs:      defs,
		runs:      runs,
		runner:    runner,
		registry:  reg,
		workers:   4,
		queueSize: 128,
		locker:    ports.NopLocker{},
		lockTTL:   time.Minute,
		logger:    logging.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
		quit:      make(chan struct{}),
	}
	if d.registry == nil {
		d.registry = registry.Default()
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan task, d.queueSize)
	return d
}

// Start launches the worker goroutines. It returns immediately.
// Runs submitted before Start wait in the queue.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}
	if d.started {
		return nil
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	d.group, ctx = errgroup.WithContext(ctx)

	d.logger.Info("dispatcher starting", "workers", d.workers, "queue_size", d.queueSize)

	for range d.workers {
		d.group.Go(func() error {
			d.workerLoop(ctx)
			return nil
		})
	}
	return nil
}

// Stop stops accepting work, waits for in-flight runs and fails queued ones.
// If ctx ends first, in-flight runs have their context cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.admit.Lock()
	close(d.quit)
	d.admit.Unlock()
	group, cancel := d.group, d.cancel
	d.mu.Unlock()

	d.logger.Info("dispatcher stopping")

	if group != nil {
		done := make(chan struct{})
		go func() {
			_ = group.Wait()
			close(done)
		}()

		select {
		case <-done:
			d.logger.Info("dispatcher stopped gracefully")
		case <-ctx.Done():
			d.logger.Warn("dispatcher shutdown timed out, cancelling active runs")
			cancel()
			<-done
		}
		cancel()
	}

	d.drain(ctx)
	return nil
}

// drain fails every run still queued.
func (d *Dispatcher) drain(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for {
		select {
		case t := <-d.queue:
			d.fail(ctx, t.runID, nil, ErrStopped)
		default:
			return
		}
	}
}

// QueueDepth reports how many runs are waiting for a worker.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// CreateGraph validates rec against the registry, stores it under a fresh id and returns the id.
// Unlike loading, creation rejects conditions that are not registered.
func (d *Dispatcher) CreateGraph(ctx context.Context, rec *codec.Record) (string, error) {
	def, warnings, err := codec.Decode(rec, d.registry, d.logger)
	if err != nil {
		return "", err
	}
	if len(warnings) > 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrUnserializable, warnings[0])
	}

	id := d.newID()
	if err := d.PutGraph(ctx, id, def); err != nil {
		return "", err
	}
	return id, nil
}

// PutGraph stores def under id, replacing any previous definition.
func (d *Dispatcher) PutGraph(ctx context.Context, id string, def *graph.Definition) error {
	if err := validator.ValidateGraph(def, d.registry); err != nil {
		return err
	}
	data, err := codec.Dump(def, d.registry, codec.FormatJSON)
	if err != nil {
		return err
	}
	if err := d.defs.SaveDefinition(ctx, id, data); err != nil {
		return fmt.Errorf("failed to store graph %s: %w", id, err)
	}
	d.logger.Info("graph stored", "graph_id", id, "name", def.Name, "steps", len(def.Steps))
	return nil
}

// Graph loads and decodes a stored definition.
func (d *Dispatcher) Graph(ctx context.Context, id string) (*graph.Definition, error) {
	data, err := d.defs.LoadDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	def, warnings, err := codec.Load(data, d.registry, d.logger.With("graph_id", id))
	if err != nil {
		return nil, fmt.Errorf("failed to decode graph %s: %w", id, err)
	}
	if len(warnings) > 0 {
		d.logger.Warn("graph loaded with dropped edges", "graph_id", id, "dropped", len(warnings))
	}
	return def, nil
}

// Graphs lists stored graph ids.
func (d *Dispatcher) Graphs(ctx context.Context) ([]string, error) {
	return d.defs.ListDefinitions(ctx)
}

// Submit records a new run of graphID and queues it. It fails with
// domain.ErrGraphNotFound before anything is scheduled if the graph does not exist.
func (d *Dispatcher) Submit(ctx context.Context, graphID string, input any) (*domain.Run, error) {
	d.admit.RLock()
	defer d.admit.RUnlock()

	select {
	case <-d.quit:
		return nil, ErrStopped
	default:
	}

	if d.limiter != nil && !d.limiter.Allow() {
		return nil, ErrRateLimited
	}

	if _, err := d.defs.LoadDefinition(ctx, graphID); err != nil {
		return nil, err
	}

	state := domain.NewState(input)
	state.Status = domain.StatusSubmitted
	state.Log(InitLog)

	run := &domain.Run{
		ID:        d.newID(),
		GraphID:   graphID,
		State:     state,
		Status:    domain.StatusSubmitted,
		StartedAt: d.now().UTC(),
	}
	if err := d.runs.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	select {
	case d.queue <- task{runID: run.ID, graphID: graphID, input: input}:
	default:
		d.fail(context.WithoutCancel(ctx), run.ID, nil, ErrQueueFull)
		return nil, ErrQueueFull
	}

	d.logger.Info("run submitted", "run_id", run.ID, "graph_id", graphID)
	return run.Clone(), nil
}

// Get returns the current record of a run.
func (d *Dispatcher) Get(ctx context.Context, runID string) (*domain.Run, error) {
	return d.runs.LoadRun(ctx, runID)
}

// List returns all run ids.
func (d *Dispatcher) List(ctx context.Context) ([]string, error) {
	return d.runs.ListRuns(ctx)
}
