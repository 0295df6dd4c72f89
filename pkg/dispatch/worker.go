package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
)

const (
	finalizeAttempts = 3
	finalizeBackoff  = 20 * time.Millisecond
)

func (d *Dispatcher) workerLoop(ctx context.Context) {
	for {
		select {
		case <-d.quit:
			return
		default:
		}

		select {
		case <-d.quit:
			return
		case <-ctx.Done():
			return
		case t := <-d.queue:
			d.execute(ctx, t)
		}
	}
}

// execute runs one task and finalizes its record. Every path ends in finalize.
func (d *Dispatcher) execute(ctx context.Context, t task) {
	logger := d.logger.With("run_id", t.runID, "graph_id", t.graphID)

	// Finalizing must survive a cancelled run context.
	finCtx := context.WithoutCancel(ctx)

	unlock, err := d.locker.Lock(ctx, "run:"+t.runID, d.lockTTL)
	if err != nil {
		logger.Error("failed to lock run", "err", err)
		d.fail(finCtx, t.runID, nil, fmt.Errorf("failed to lock run: %w", err))
		return
	}
	defer func() {
		if err := unlock(finCtx); err != nil {
			logger.Warn("failed to unlock run", "err", err)
		}
	}()

	run, err := d.runs.LoadRun(ctx, t.runID)
	if err != nil {
		logger.Error("failed to load run", "err", err)
		d.fail(finCtx, t.runID, nil, fmt.Errorf("failed to load run: %w", err))
		return
	}
	if run.Status.IsTerminal() {
		logger.Debug("run already finalized, skipping")
		return
	}

	run.Status = domain.StatusRunning
	run.State.Status = domain.StatusRunning
	if err := d.runs.SaveRun(ctx, run); err != nil {
		logger.Error("failed to mark run as running", "err", err)
		d.fail(finCtx, t.runID, run.State, fmt.Errorf("failed to mark run as running: %w", err))
		return
	}

	def, err := d.Graph(ctx, t.graphID)
	if err != nil {
		d.fail(finCtx, t.runID, run.State, err)
		return
	}

	logger.Info("run executing")
	state, err := d.invoke(ctx, def, t.input)
	if err != nil {
		if state == nil {
			state = run.State
		}
		d.fail(finCtx, t.runID, state, err)
		return
	}

	d.finalize(finCtx, t.runID, state, domain.StatusCompleted, "")
}

// invoke calls the runner, converting a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, def *graph.Definition, input any) (state *domain.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("runner panicked", "graph", def.Name, "panic", r, "stack", string(debug.Stack()))
			state, err = nil, fmt.Errorf("panic in runner: %v", r)
		}
	}()
	return d.runner.Run(ctx, def, input)
}

// fail finalizes runID as FAILED. state may be nil, in which case the stored state is used.
func (d *Dispatcher) fail(ctx context.Context, runID string, state *domain.State, cause error) {
	if state == nil {
		run, err := d.loadRun(ctx, runID)
		if err != nil {
			d.logger.Error("failed to load run for failure", "run_id", runID, "err", err)
			return
		}
		state = run.State
	}
	state.Logf("CRITICAL ERROR: %v", cause)
	d.finalize(ctx, runID, state, domain.StatusFailed, cause.Error())
}

// finalize writes the terminal record once. A concurrent or repeated finalize is logged and ignored.
func (d *Dispatcher) finalize(ctx context.Context, runID string, state *domain.State, status domain.Status, errMsg string) {
	run, err := d.loadRun(ctx, runID)
	if err != nil {
		d.logger.Error("failed to load run for finalize", "run_id", runID, "err", err)
		return
	}

	finished := d.now().UTC()
	state.Status = status
	run.State = state
	run.Status = status
	run.Error = errMsg
	run.FinishedAt = &finished

	if err := d.runs.FinalizeRun(ctx, run); err != nil {
		if errors.Is(err, domain.ErrRunFinalized) {
			d.logger.Warn("run already finalized", "run_id", runID)
			return
		}
		d.logger.Error("failed to finalize run", "run_id", runID, "err", err)
		return
	}

	if status == domain.StatusFailed {
		d.logger.Warn("run failed", "run_id", runID, "err", errMsg)
	} else {
		d.logger.Info("run completed", "run_id", runID, "duration", finished.Sub(run.StartedAt))
	}
}

// loadRun reads a run for finalizing, retrying transient store errors a few times.
func (d *Dispatcher) loadRun(ctx context.Context, runID string) (*domain.Run, error) {
	var err error
	for attempt := range finalizeAttempts {
		var run *domain.Run
		run, err = d.runs.LoadRun(ctx, runID)
		if err == nil || errors.Is(err, domain.ErrRunNotFound) {
			return run, err
		}
		time.Sleep(time.Duration(attempt+1) * finalizeBackoff)
	}
	return nil, err
}
