/*
Package dispatch runs graphs asynchronously and keeps durable run records.

A Dispatcher owns the path from a (graph id, input) pair to a finished run record:

  - Submit resolves the graph id, saves a SUBMITTED run record and queues it.
  - A pool of worker goroutines picks queued runs, marks them RUNNING, decodes the
    stored definition against the registry and hands it to a ports.Runner.
  - The outcome is written back exactly once through ports.RunStore.FinalizeRun:
    COMPLETED with the final state, or FAILED with "CRITICAL ERROR: <err>" appended
    to the run's logs.

The engine never sees run ids; the dispatcher never looks inside a run's state.
*/
package dispatch
